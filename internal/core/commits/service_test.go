package commits

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

type stubReader struct {
	metas        []*CommitMeta
	failDiffFor  string
	listErr      error
	fetchedDiffs map[string]int
	mu           sync.Mutex
}

func (r *stubReader) ListRecent(ctx context.Context, loc ingestion.RepoLocation, limit int) ([]*CommitMeta, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	if limit < len(r.metas) {
		return r.metas[:limit], nil
	}
	return r.metas, nil
}

func (r *stubReader) FetchDiff(ctx context.Context, loc ingestion.RepoLocation, hash string) (string, error) {
	r.mu.Lock()
	if r.fetchedDiffs == nil {
		r.fetchedDiffs = make(map[string]int)
	}
	r.fetchedDiffs[hash]++
	r.mu.Unlock()

	if hash == r.failDiffFor {
		return "", errors.New("diff too large")
	}
	return "diff for " + hash, nil
}

type stubDiffSummarizer struct {
	failFor string
}

func (s *stubDiffSummarizer) SummarizeDiff(ctx context.Context, diff string) (string, error) {
	if s.failFor != "" && diff == "diff for "+s.failFor {
		return "", errors.New("model overloaded")
	}
	return "summary: " + diff, nil
}

type stubCommitStore struct {
	mu          sync.Mutex
	commits     []*ProcessedCommit
	failInsert  map[string]error
	listHashErr error
}

func newStubCommitStore() *stubCommitStore {
	return &stubCommitStore{}
}

func (s *stubCommitStore) InsertProcessedCommit(ctx context.Context, commit *ProcessedCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failInsert[commit.Hash]; ok {
		return err
	}

	stored := *commit
	s.commits = append(s.commits, &stored)
	return nil
}

func (s *stubCommitStore) ListProcessedHashes(ctx context.Context, repositoryID uuid.UUID) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listHashErr != nil {
		return nil, s.listHashErr
	}

	hashes := make(map[string]struct{})
	for _, c := range s.commits {
		if c.RepositoryID == repositoryID {
			hashes[c.Hash] = struct{}{}
		}
	}
	return hashes, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func commitMetas(hashes ...string) []*CommitMeta {
	metas := make([]*CommitMeta, 0, len(hashes))
	for i, h := range hashes {
		metas = append(metas, &CommitMeta{
			Hash:        h,
			Message:     "commit " + h,
			AuthorName:  "dev",
			CommittedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Hour),
		})
	}
	return metas
}

func TestIngestNew_SummarizesAndPersists(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa", "bbb", "ccc")}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))

	repoID := uuid.New()
	processed, err := svc.IngestNew(context.Background(), repoID, ingestion.RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	require.Len(t, processed, 3)
	for _, c := range processed {
		assert.Equal(t, repoID, c.RepositoryID)
		assert.Equal(t, SummaryStatusOK, c.SummaryStatus)
		assert.Equal(t, "summary: diff for "+c.Hash, c.Summary)
		assert.NotEqual(t, uuid.Nil, c.ID)
	}
	assert.Len(t, store.commits, 3)
}

func TestIngestNew_SecondRunIsIdempotent(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa", "bbb")}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))

	repoID := uuid.New()
	loc := ingestion.RepoLocation{URL: "https://github.com/acme/app"}

	first, err := svc.IngestNew(context.Background(), repoID, loc)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := svc.IngestNew(context.Background(), repoID, loc)
	require.NoError(t, err)
	assert.Empty(t, second)

	// 処理済みコミットの差分は再取得されない
	assert.Equal(t, 1, reader.fetchedDiffs["aaa"])
	assert.Equal(t, 1, reader.fetchedDiffs["bbb"])
	assert.Len(t, store.commits, 2)
}

func TestIngestNew_OnlyNewCommitsProcessed(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa", "bbb")}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))

	repoID := uuid.New()
	loc := ingestion.RepoLocation{URL: "https://github.com/acme/app"}

	_, err := svc.IngestNew(context.Background(), repoID, loc)
	require.NoError(t, err)

	// 新しいコミットが1件増える
	reader.metas = commitMetas("new", "aaa", "bbb")

	processed, err := svc.IngestNew(context.Background(), repoID, loc)
	require.NoError(t, err)

	require.Len(t, processed, 1)
	assert.Equal(t, "new", processed[0].Hash)
}

func TestIngestNew_DiffFailureRecordedAsUnavailable(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa", "bbb"), failDiffFor: "aaa"}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))

	processed, err := svc.IngestNew(context.Background(), uuid.New(), ingestion.RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)
	require.Len(t, processed, 2)

	byHash := make(map[string]*ProcessedCommit)
	for _, c := range processed {
		byHash[c.Hash] = c
	}

	// 失敗したコミットも要約不可として永続化される（バッチは中断しない）
	assert.Equal(t, SummaryStatusUnavailable, byHash["aaa"].SummaryStatus)
	assert.Empty(t, byHash["aaa"].Summary)
	assert.Equal(t, SummaryStatusOK, byHash["bbb"].SummaryStatus)
}

func TestIngestNew_SummaryFailureRecordedAsUnavailable(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa")}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{failFor: "aaa"}, store, WithLogger(discardLogger()))

	processed, err := svc.IngestNew(context.Background(), uuid.New(), ingestion.RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, SummaryStatusUnavailable, processed[0].SummaryStatus)
}

func TestIngestNew_UnavailableCommitNotRetriedOnNextRun(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa"), failDiffFor: "aaa"}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))

	repoID := uuid.New()
	loc := ingestion.RepoLocation{URL: "https://github.com/acme/app"}

	first, err := svc.IngestNew(context.Background(), repoID, loc)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, SummaryStatusUnavailable, first[0].SummaryStatus)

	// 要約不可でも処理済み扱いとなり、次回は再処理されない
	second, err := svc.IngestNew(context.Background(), repoID, loc)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestIngestNew_StoreFailureCollectedWithPartialResults(t *testing.T) {
	reader := &stubReader{metas: commitMetas("aaa", "bbb", "ccc")}
	store := newStubCommitStore()
	insertErr := errors.New("connection reset")
	store.failInsert = map[string]error{"bbb": insertErr}

	svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))

	processed, err := svc.IngestNew(context.Background(), uuid.New(), ingestion.RepoLocation{URL: "https://github.com/acme/app"})
	require.Error(t, err)
	assert.ErrorIs(t, err, insertErr)

	// 永続化に成功したコミットは結果に残る
	assert.Len(t, processed, 2)
}

func TestIngestNew_ListFailurePropagates(t *testing.T) {
	listErr := errors.New("upstream unavailable")
	reader := &stubReader{listErr: listErr}

	svc := NewService(reader, &stubDiffSummarizer{}, newStubCommitStore(), WithLogger(discardLogger()))

	processed, err := svc.IngestNew(context.Background(), uuid.New(), ingestion.RepoLocation{URL: "https://github.com/acme/app"})
	assert.Nil(t, processed)
	assert.ErrorIs(t, err, listErr)
}

func TestIngestNew_ConcurrentRunsBoundedDuplication(t *testing.T) {
	reader := &stubReader{metas: commitMetas("new")}
	store := newStubCommitStore()

	repoID := uuid.New()
	loc := ingestion.RepoLocation{URL: "https://github.com/acme/app"}

	// 同一リポジトリへの同時実行。事前突き合わせのみの冪等性なので
	// 同じコミットが重複して登録されうるが、実行回数を超えることはない
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			svc := NewService(reader, &stubDiffSummarizer{}, store, WithLogger(discardLogger()))
			_, err := svc.IngestNew(context.Background(), repoID, loc)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count := 0
	store.mu.Lock()
	for _, c := range store.commits {
		if c.Hash == "new" {
			count++
		}
	}
	store.mu.Unlock()

	assert.GreaterOrEqual(t, count, 1)
	assert.LessOrEqual(t, count, 2)
}

func TestIngestNew_FetchLimitRespected(t *testing.T) {
	reader := &stubReader{metas: commitMetas("a", "b", "c", "d", "e")}
	store := newStubCommitStore()

	svc := NewService(reader, &stubDiffSummarizer{}, store,
		WithLogger(discardLogger()),
		WithFetchLimit(2),
	)

	processed, err := svc.IngestNew(context.Background(), uuid.New(), ingestion.RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)
	assert.Len(t, processed, 2)
}
