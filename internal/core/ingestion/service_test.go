package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWalker struct {
	results []FileResult
	err     error
}

func (w *stubWalker) Walk(ctx context.Context, loc RepoLocation) (<-chan FileResult, error) {
	if w.err != nil {
		return nil, w.err
	}

	ch := make(chan FileResult, len(w.results))
	for _, r := range w.results {
		ch <- r
	}
	close(ch)
	return ch, nil
}

type stubSummarizer struct {
	failPath string
}

func (s *stubSummarizer) SummarizeFile(ctx context.Context, path, content string) (string, error) {
	if s.failPath != "" && path == s.failPath {
		return "", errors.New("summarize failed")
	}
	return "summary of " + path, nil
}

type stubEmbedder struct{}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) Dimension() int { return 3 }

type stubChunkStore struct {
	mu            sync.Mutex
	inserted      []*SourceChunk
	embedded      map[uuid.UUID][]float32
	failEmbedFor  string
	failInsertFor string
}

func newStubChunkStore() *stubChunkStore {
	return &stubChunkStore{embedded: make(map[uuid.UUID][]float32)}
}

func (s *stubChunkStore) InsertChunk(ctx context.Context, chunk *SourceChunk) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsertFor != "" && chunk.FileName == s.failInsertFor {
		return uuid.Nil, &StoreError{Op: "insert chunk", Err: errors.New("connection reset")}
	}

	stored := *chunk
	s.inserted = append(s.inserted, &stored)
	return chunk.ID, nil
}

func (s *stubChunkStore) SetEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failEmbedFor != "" {
		for _, c := range s.inserted {
			if c.ID == id && c.FileName == s.failEmbedFor {
				return &StoreError{Op: "set embedding", Err: errors.New("connection reset")}
			}
		}
	}

	s.embedded[id] = vector
	return nil
}

func (s *stubChunkStore) SimilaritySearch(ctx context.Context, repositoryID uuid.UUID, queryVector []float32, limit int, minScore float64) ([]*Match, error) {
	return nil, nil
}

func (s *stubChunkStore) DeleteChunksBySnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fileResults(n int) []FileResult {
	results := make([]FileResult, 0, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("src/file%d.go", i)
		results = append(results, FileResult{
			Path: path,
			File: &SourceFile{Path: path, Content: "package main"},
		})
	}
	return results
}

func TestIngest_AllFilesIndexed(t *testing.T) {
	walker := &stubWalker{results: fileResults(5)}
	store := newStubChunkStore()

	svc := NewService(walker, &stubSummarizer{}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
	)

	repoID := uuid.New()
	report, err := svc.Ingest(context.Background(), repoID, RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Indexed)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.Failures)
	assert.Equal(t, repoID, report.RepositoryID)
	assert.NotEqual(t, uuid.Nil, report.SnapshotID)

	// 全チャンクが同一世代・同一リポジトリに属し、embedding が設定されている
	require.Len(t, store.inserted, 5)
	for _, chunk := range store.inserted {
		assert.Equal(t, repoID, chunk.RepositoryID)
		assert.Equal(t, report.SnapshotID, chunk.SnapshotID)
		assert.Contains(t, store.embedded, chunk.ID)
	}
}

func TestIngest_SummaryUsedForEmbeddingAndPersisted(t *testing.T) {
	walker := &stubWalker{results: fileResults(1)}
	store := newStubChunkStore()

	svc := NewService(walker, &stubSummarizer{}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
	)

	_, err := svc.Ingest(context.Background(), uuid.New(), RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "summary of src/file0.go", store.inserted[0].Summary)
	assert.Equal(t, "package main", store.inserted[0].SourceCode)
}

func TestIngest_SingleFailureDoesNotAbortSiblings(t *testing.T) {
	walker := &stubWalker{results: fileResults(5)}
	store := newStubChunkStore()
	store.failEmbedFor = "src/file2.go"

	svc := NewService(walker, &stubSummarizer{}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
	)

	report, err := svc.Ingest(context.Background(), uuid.New(), RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "src/file2.go", report.Failures[0].FileName)
	assert.Equal(t, StagePersist, report.Failures[0].Stage)

	var storeErr *StoreError
	assert.ErrorAs(t, report.Failures[0].Err, &storeErr)
}

func TestIngest_SummarizeFailureRecordsStage(t *testing.T) {
	walker := &stubWalker{results: fileResults(3)}
	store := newStubChunkStore()

	svc := NewService(walker, &stubSummarizer{failPath: "src/file1.go"}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
	)

	report, err := svc.Ingest(context.Background(), uuid.New(), RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Indexed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageSummarize, report.Failures[0].Stage)
}

func TestIngest_FileFetchErrorRecordedAsFetchStage(t *testing.T) {
	results := fileResults(2)
	results = append(results, FileResult{
		Path: "src/broken.go",
		Err:  &FetchError{URL: "https://github.com/acme/app", StatusCode: 403, Err: errors.New("rate limited")},
	})
	walker := &stubWalker{results: results}
	store := newStubChunkStore()

	svc := NewService(walker, &stubSummarizer{}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
	)

	report, err := svc.Ingest(context.Background(), uuid.New(), RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Indexed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageFetch, report.Failures[0].Stage)

	var fetchErr *FetchError
	assert.ErrorAs(t, report.Failures[0].Err, &fetchErr)
}

func TestIngest_WalkerTerminalErrorPropagates(t *testing.T) {
	walker := &stubWalker{err: fmt.Errorf("%w: https://github.com/acme/missing", ErrRepoNotFound)}
	store := newStubChunkStore()

	svc := NewService(walker, &stubSummarizer{}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
	)

	report, err := svc.Ingest(context.Background(), uuid.New(), RepoLocation{URL: "https://github.com/acme/missing"})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrRepoNotFound)
	assert.Empty(t, store.inserted)
}

func TestIngest_OnFileCallbackCalledPerFile(t *testing.T) {
	walker := &stubWalker{results: fileResults(4)}
	store := newStubChunkStore()

	var mu sync.Mutex
	var seen []string

	svc := NewService(walker, &stubSummarizer{}, &stubEmbedder{}, store, nil,
		WithLogger(discardLogger()),
		WithOnFile(func(path string, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, path)
		}),
	)

	_, err := svc.Ingest(context.Background(), uuid.New(), RepoLocation{URL: "https://github.com/acme/app"})
	require.NoError(t, err)

	assert.Len(t, seen, 4)
}
