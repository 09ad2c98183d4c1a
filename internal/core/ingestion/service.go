package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultWorkerCount はデフォルトのファイル処理ワーカー数（I/O バウンド）
	// 下流APIのクォータを尊重するため、同時処理数を制限する
	DefaultWorkerCount = 5
)

// ServiceConfig はインデックス処理の設定
type ServiceConfig struct {
	// WorkerCount は要約・Embedding・永続化を行うワーカー数
	WorkerCount int
}

// DefaultServiceConfig はデフォルトの設定を返す
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		WorkerCount: DefaultWorkerCount,
	}
}

// Service はリポジトリのインデックス化を統括する
type Service struct {
	walker     Walker
	summarizer Summarizer
	embedder   Embedder
	store      ChunkStore
	detector   LanguageDetector
	config     *ServiceConfig
	logger     *slog.Logger
	onFile     func(path string, err error)
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLanguageDetector は言語判定器を設定する
func WithLanguageDetector(detector LanguageDetector) ServiceOption {
	return func(s *Service) {
		s.detector = detector
	}
}

// WithOnFile はファイル1件の処理完了ごとに呼ばれるコールバックを設定する
// 進捗表示用。完了順に呼ばれる
func WithOnFile(fn func(path string, err error)) ServiceOption {
	return func(s *Service) {
		s.onFile = fn
	}
}

// NewService は新しい Service を作成する
func NewService(
	walker Walker,
	summarizer Summarizer,
	embedder Embedder,
	store ChunkStore,
	config *ServiceConfig,
	opts ...ServiceOption,
) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount
	}

	svc := &Service{
		walker:     walker,
		summarizer: summarizer,
		embedder:   embedder,
		store:      store,
		config:     config,
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

// fileOutcome はファイル1件分の処理結果
type fileOutcome struct {
	path    string
	stage   Stage
	err     error
	indexed bool
}

// Ingest はリポジトリの全ファイルをインデックス化する
//
// ファイルごとに 要約 → Embedding生成 → 行作成 → Embedding設定 のチェーンを
// 独立に実行し、1ファイルの失敗は他のファイルの処理を妨げない。
// 部分的な失敗は Report に記録され、エラーとしては返らない。
// エラーを返すのはリポジトリの列挙自体に失敗した場合のみ。
//
// 実行のたびに新しい SnapshotID（世代）が発行される。同一リポジトリの
// 再実行は新世代の行を追加するだけで、過去世代との重複排除は行わない
func (s *Service) Ingest(ctx context.Context, repositoryID uuid.UUID, loc RepoLocation) (*Report, error) {
	files, err := s.walker.Walk(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate repository: %w", err)
	}

	snapshotID := uuid.New()

	s.logger.Info("インデックス処理を開始",
		"repositoryID", repositoryID.String(),
		"snapshotID", snapshotID.String(),
		"workers", s.config.WorkerCount,
	)

	resultChan := make(chan *fileOutcome)

	var wg sync.WaitGroup
	wg.Add(s.config.WorkerCount)
	for i := 0; i < s.config.WorkerCount; i++ {
		go func() {
			defer wg.Done()
			s.worker(ctx, repositoryID, snapshotID, files, resultChan)
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 結果集計（完了順のため、各結果にファイル名の識別を保持する）
	report := &Report{
		RepositoryID: repositoryID,
		SnapshotID:   snapshotID,
	}
	for outcome := range resultChan {
		if s.onFile != nil {
			s.onFile(outcome.path, outcome.err)
		}
		if outcome.err != nil {
			s.logger.Warn("ファイルのインデックス化に失敗",
				"path", outcome.path,
				"stage", string(outcome.stage),
				"error", outcome.err,
			)
			report.Failed++
			report.Failures = append(report.Failures, FileFailure{
				FileName: outcome.path,
				Stage:    outcome.stage,
				Err:      outcome.err,
			})
			continue
		}
		if outcome.indexed {
			report.Indexed++
		}
	}

	s.logger.Info("インデックス処理が完了",
		"repositoryID", repositoryID.String(),
		"indexed", report.Indexed,
		"failed", report.Failed,
	)

	return report, nil
}

// worker はウォーカーのシーケンスを消費し、ファイル単位でチェーンを実行する
func (s *Service) worker(
	ctx context.Context,
	repositoryID uuid.UUID,
	snapshotID uuid.UUID,
	files <-chan FileResult,
	resultChan chan<- *fileOutcome,
) {
	for fr := range files {
		select {
		case <-ctx.Done():
			return
		default:
		}

		resultChan <- s.processFile(ctx, repositoryID, snapshotID, fr)
	}
}

// processFile は1ファイル分の 要約 → Embedding → 永続化 チェーンを実行する
func (s *Service) processFile(
	ctx context.Context,
	repositoryID uuid.UUID,
	snapshotID uuid.UUID,
	fr FileResult,
) *fileOutcome {
	if fr.Err != nil {
		return &fileOutcome{path: fr.Path, stage: StageFetch, err: fr.Err}
	}

	doc := fr.File

	summary, err := s.summarizer.SummarizeFile(ctx, doc.Path, doc.Content)
	if err != nil {
		return &fileOutcome{path: doc.Path, stage: StageSummarize, err: err}
	}

	// Embedding は要約から生成する（ソースコード本文からではない）
	vector, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return &fileOutcome{path: doc.Path, stage: StageEmbed, err: err}
	}

	var language string
	if s.detector != nil {
		language = s.detector.Detect(doc.Path, []byte(doc.Content))
	}

	chunk := &SourceChunk{
		ID:           uuid.New(),
		RepositoryID: repositoryID,
		SnapshotID:   snapshotID,
		FileName:     doc.Path,
		SourceCode:   doc.Content,
		Summary:      summary,
		Language:     language,
		CreatedAt:    time.Now(),
	}

	id, err := s.store.InsertChunk(ctx, chunk)
	if err != nil {
		return &fileOutcome{path: doc.Path, stage: StagePersist, err: err}
	}

	// 行作成と Embedding 設定の間で中断された行は embedding が NULL のまま残り、
	// 類似検索の対象外となる
	if err := s.store.SetEmbedding(ctx, id, vector); err != nil {
		return &fileOutcome{path: doc.Path, stage: StagePersist, err: err}
	}

	return &fileOutcome{path: doc.Path, indexed: true}
}
