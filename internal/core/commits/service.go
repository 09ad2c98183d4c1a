package commits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

const (
	// DefaultFetchLimit はリモートから取得する最新コミットの件数
	DefaultFetchLimit = 10
	// DefaultWorkerCount は差分取得・要約のワーカー数
	DefaultWorkerCount = 5
)

// Service はコミット差分の要約・永続化を統括する
type Service struct {
	reader     Reader
	summarizer DiffSummarizer
	store      Store
	fetchLimit int
	workers    int
	logger     *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFetchLimit は取得するコミット件数を上書きする
func WithFetchLimit(limit int) ServiceOption {
	return func(s *Service) {
		s.fetchLimit = limit
	}
}

// NewService は新しい Service を作成する
func NewService(reader Reader, summarizer DiffSummarizer, store Store, opts ...ServiceOption) *Service {
	svc := &Service{
		reader:     reader,
		summarizer: summarizer,
		store:      store,
		fetchLimit: DefaultFetchLimit,
		workers:    DefaultWorkerCount,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// summarized は差分要約の結果（要約不可の場合は status で明示する）
type summarized struct {
	meta    *CommitMeta
	summary string
	status  SummaryStatus
}

// IngestNew は未処理のコミットを要約して永続化する
//
// 冪等性は処理済みハッシュとの事前突き合わせのみで担保する。
// 同一リポジトリに対する同時実行は同じコミットを重複して登録しうる
// （既知の制約であり、一意制約による排他は行わない）。
//
// 差分取得や要約の失敗はそのコミットの要約を「生成不可」として記録し、
// バッチ全体は中断しない。永続化の失敗のみエラーとして集約して返す
func (s *Service) IngestNew(ctx context.Context, repositoryID uuid.UUID, loc ingestion.RepoLocation) ([]*ProcessedCommit, error) {
	metas, err := s.reader.ListRecent(ctx, loc, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	processed, err := s.store.ListProcessedHashes(ctx, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed hashes: %w", err)
	}

	var pending []*CommitMeta
	for _, meta := range metas {
		if _, ok := processed[meta.Hash]; ok {
			continue
		}
		pending = append(pending, meta)
	}

	if len(pending) == 0 {
		return nil, nil
	}

	s.logger.Info("新規コミットの要約を開始",
		"repositoryID", repositoryID.String(),
		"count", len(pending),
	)

	metaChan := make(chan *CommitMeta, len(pending))
	for _, meta := range pending {
		metaChan <- meta
	}
	close(metaChan)

	resultChan := make(chan *summarized, len(pending))

	workers := s.workers
	if workers > len(pending) {
		workers = len(pending)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for meta := range metaChan {
				resultChan <- s.summarizeCommit(ctx, loc, meta)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var (
		results   []*ProcessedCommit
		storeErrs []error
	)
	for r := range resultChan {
		commit := &ProcessedCommit{
			ID:              uuid.New(),
			RepositoryID:    repositoryID,
			Hash:            r.meta.Hash,
			Message:         r.meta.Message,
			AuthorName:      r.meta.AuthorName,
			AuthorAvatarURL: r.meta.AuthorAvatarURL,
			CommittedAt:     r.meta.CommittedAt,
			Summary:         r.summary,
			SummaryStatus:   r.status,
			CreatedAt:       time.Now(),
		}

		if err := s.store.InsertProcessedCommit(ctx, commit); err != nil {
			storeErrs = append(storeErrs, fmt.Errorf("failed to persist commit %s: %w", r.meta.Hash, err))
			continue
		}
		results = append(results, commit)
	}

	if len(storeErrs) > 0 {
		return results, errors.Join(storeErrs...)
	}

	return results, nil
}

// summarizeCommit は1コミット分の差分取得と要約を行う
func (s *Service) summarizeCommit(ctx context.Context, loc ingestion.RepoLocation, meta *CommitMeta) *summarized {
	diff, err := s.reader.FetchDiff(ctx, loc, meta.Hash)
	if err != nil {
		s.logger.Warn("差分の取得に失敗",
			"hash", meta.Hash,
			"error", err,
		)
		return &summarized{meta: meta, status: SummaryStatusUnavailable}
	}

	summary, err := s.summarizer.SummarizeDiff(ctx, diff)
	if err != nil {
		s.logger.Warn("差分の要約に失敗",
			"hash", meta.Hash,
			"error", err,
		)
		return &summarized{meta: meta, status: SummaryStatusUnavailable}
	}

	return &summarized{meta: meta, summary: summary, status: SummaryStatusOK}
}
