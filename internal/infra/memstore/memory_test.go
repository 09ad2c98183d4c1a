package memstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

func insertEmbedded(t *testing.T, s *Store, repoID uuid.UUID, name string, vector []float32) uuid.UUID {
	t.Helper()

	id, err := s.InsertChunk(context.Background(), &ingestion.SourceChunk{
		RepositoryID: repoID,
		SnapshotID:   uuid.New(),
		FileName:     name,
		SourceCode:   "code of " + name,
		Summary:      "summary of " + name,
	})
	require.NoError(t, err)
	require.NoError(t, s.SetEmbedding(context.Background(), id, vector))
	return id
}

func TestSimilaritySearch_RanksByCosineSimilarity(t *testing.T) {
	s := New()
	repoID := uuid.New()

	insertEmbedded(t, s, repoID, "far.go", []float32{0, 1, 0})
	insertEmbedded(t, s, repoID, "near.go", []float32{1, 0.1, 0})
	insertEmbedded(t, s, repoID, "exact.go", []float32{1, 0, 0})

	matches, err := s.SimilaritySearch(context.Background(), repoID, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "exact.go", matches[0].FileName)
	assert.Equal(t, "near.go", matches[1].FileName)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSimilaritySearch_ScoreFloorIsStrict(t *testing.T) {
	s := New()
	repoID := uuid.New()

	// 直交ベクトルはスコア0
	insertEmbedded(t, s, repoID, "orthogonal.go", []float32{0, 1, 0})

	matches, err := s.SimilaritySearch(context.Background(), repoID, []float32{1, 0, 0}, 10, 0)
	require.NoError(t, err)

	// score > minScore の厳密比較なので、スコア0は floor 0 で除外される
	assert.Empty(t, matches)
}

func TestSimilaritySearch_LimitBound(t *testing.T) {
	s := New()
	repoID := uuid.New()

	for i := 0; i < 20; i++ {
		insertEmbedded(t, s, repoID, fmt.Sprintf("f%d.go", i), []float32{1, float32(i) * 0.01, 0})
	}

	matches, err := s.SimilaritySearch(context.Background(), repoID, []float32{1, 0, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Len(t, matches, 5)
}

func TestSimilaritySearch_TieBrokenByInsertionOrder(t *testing.T) {
	s := New()
	repoID := uuid.New()

	// 同一ベクトル = 同一スコア
	insertEmbedded(t, s, repoID, "first.go", []float32{1, 0, 0})
	insertEmbedded(t, s, repoID, "second.go", []float32{1, 0, 0})
	insertEmbedded(t, s, repoID, "third.go", []float32{1, 0, 0})

	for i := 0; i < 10; i++ {
		matches, err := s.SimilaritySearch(context.Background(), repoID, []float32{1, 0, 0}, 10, 0.5)
		require.NoError(t, err)

		require.Len(t, matches, 3)
		assert.Equal(t, "first.go", matches[0].FileName)
		assert.Equal(t, "second.go", matches[1].FileName)
		assert.Equal(t, "third.go", matches[2].FileName)
	}
}

func TestSimilaritySearch_ExcludesRowsWithoutEmbedding(t *testing.T) {
	s := New()
	repoID := uuid.New()

	// embedding 未設定の行（2段階書き込みの1段階目で中断された状態）
	_, err := s.InsertChunk(context.Background(), &ingestion.SourceChunk{
		RepositoryID: repoID,
		SnapshotID:   uuid.New(),
		FileName:     "pending.go",
	})
	require.NoError(t, err)

	insertEmbedded(t, s, repoID, "done.go", []float32{1, 0, 0})

	matches, err := s.SimilaritySearch(context.Background(), repoID, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "done.go", matches[0].FileName)
}

func TestSimilaritySearch_ScopedToRepository(t *testing.T) {
	s := New()
	repoA := uuid.New()
	repoB := uuid.New()

	insertEmbedded(t, s, repoA, "a.go", []float32{1, 0, 0})
	insertEmbedded(t, s, repoB, "b.go", []float32{1, 0, 0})

	matches, err := s.SimilaritySearch(context.Background(), repoA, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "a.go", matches[0].FileName)
}

func TestSetEmbedding_UnknownChunk(t *testing.T) {
	s := New()

	err := s.SetEmbedding(context.Background(), uuid.New(), []float32{1})
	require.Error(t, err)

	var storeErr *ingestion.StoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestDeleteChunksBySnapshot(t *testing.T) {
	s := New()
	repoID := uuid.New()
	oldSnapshot := uuid.New()
	newSnapshot := uuid.New()

	for i := 0; i < 3; i++ {
		id, err := s.InsertChunk(context.Background(), &ingestion.SourceChunk{
			RepositoryID: repoID,
			SnapshotID:   oldSnapshot,
			FileName:     fmt.Sprintf("old%d.go", i),
		})
		require.NoError(t, err)
		require.NoError(t, s.SetEmbedding(context.Background(), id, []float32{1, 0, 0}))
	}
	id, err := s.InsertChunk(context.Background(), &ingestion.SourceChunk{
		RepositoryID: repoID,
		SnapshotID:   newSnapshot,
		FileName:     "new.go",
	})
	require.NoError(t, err)
	require.NoError(t, s.SetEmbedding(context.Background(), id, []float32{1, 0, 0}))

	require.NoError(t, s.DeleteChunksBySnapshot(context.Background(), oldSnapshot))

	assert.Equal(t, 1, s.ChunkCount(repoID))

	matches, err := s.SimilaritySearch(context.Background(), repoID, []float32{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new.go", matches[0].FileName)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// 次元不一致とゼロベクトルは0
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
