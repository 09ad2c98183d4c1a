// Package memstore はテストと小規模な実験のためのインメモリストア実装を提供する。
// PostgreSQL 実装と同じ意味論（未埋め込み行の除外、スコア下限の厳密比較、
// 同点スコアの挿入順）を保つ
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/gitscribe/internal/core/answer"
	"github.com/jinford/gitscribe/internal/core/commits"
	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// Store はスレッドセーフなインメモリストア
type Store struct {
	mu sync.RWMutex

	seq       int64
	chunks    map[uuid.UUID]*chunkRow
	processed []*commits.ProcessedCommit
}

type chunkRow struct {
	seq       int64
	chunk     ingestion.SourceChunk
	embedding []float32 // nil は未埋め込み
}

// New は新しい Store を作成する
func New() *Store {
	return &Store{
		chunks: make(map[uuid.UUID]*chunkRow),
	}
}

var (
	_ ingestion.ChunkStore = (*Store)(nil)
	_ answer.Retriever     = (*Store)(nil)
	_ commits.Store        = (*Store)(nil)
)

// InsertChunk は embedding 未設定のチャンク行を作成する
func (s *Store) InsertChunk(ctx context.Context, chunk *ingestion.SourceChunk) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chunk.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	stored := *chunk
	stored.ID = id

	s.seq++
	s.chunks[id] = &chunkRow{seq: s.seq, chunk: stored}

	return id, nil
}

// SetEmbedding は既存行にベクトルを設定する
func (s *Store) SetEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.chunks[id]
	if !ok {
		return &ingestion.StoreError{Op: "set embedding", Err: fmt.Errorf("chunk %s not found", id)}
	}

	row.embedding = append([]float32(nil), vector...)
	return nil
}

// SimilaritySearch はリポジトリ内のコサイン類似検索を行う
func (s *Store) SimilaritySearch(ctx context.Context, repositoryID uuid.UUID, queryVector []float32, limit int, minScore float64) ([]*ingestion.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		seq   int64
		match *ingestion.Match
	}

	var candidates []scored
	for _, row := range s.chunks {
		if row.chunk.RepositoryID != repositoryID {
			continue
		}
		if row.embedding == nil {
			continue
		}

		score := cosineSimilarity(queryVector, row.embedding)
		if score <= minScore {
			continue
		}

		candidates = append(candidates, scored{
			seq: row.seq,
			match: &ingestion.Match{
				FileName:   row.chunk.FileName,
				SourceCode: row.chunk.SourceCode,
				Summary:    row.chunk.Summary,
				Score:      score,
			},
		})
	}

	// スコア降順、同点は挿入順
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].match.Score != candidates[j].match.Score {
			return candidates[i].match.Score > candidates[j].match.Score
		}
		return candidates[i].seq < candidates[j].seq
	})

	if limit < len(candidates) {
		candidates = candidates[:limit]
	}

	matches := make([]*ingestion.Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, c.match)
	}
	return matches, nil
}

// DeleteChunksBySnapshot は指定世代のチャンクを削除する
func (s *Store) DeleteChunksBySnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range s.chunks {
		if row.chunk.SnapshotID == snapshotID {
			delete(s.chunks, id)
		}
	}
	return nil
}

// InsertProcessedCommit は要約済みコミットを追加する
func (s *Store) InsertProcessedCommit(ctx context.Context, commit *commits.ProcessedCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *commit
	s.processed = append(s.processed, &stored)
	return nil
}

// ListProcessedHashes は処理済みコミットハッシュの集合を返す
func (s *Store) ListProcessedHashes(ctx context.Context, repositoryID uuid.UUID) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := make(map[string]struct{})
	for _, commit := range s.processed {
		if commit.RepositoryID != repositoryID {
			continue
		}
		hashes[commit.Hash] = struct{}{}
	}
	return hashes, nil
}

// ChunkCount はリポジトリに属するチャンク数を返す（テスト用）
func (s *Store) ChunkCount(repositoryID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.chunks {
		if row.chunk.RepositoryID == repositoryID {
			count++
		}
	}
	return count
}

// ProcessedCommits はリポジトリの処理済みコミットを挿入順で返す（テスト用）
func (s *Store) ProcessedCommits(repositoryID uuid.UUID) []*commits.ProcessedCommit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*commits.ProcessedCommit
	for _, commit := range s.processed {
		if commit.RepositoryID == repositoryID {
			result = append(result, commit)
		}
	}
	return result
}

// cosineSimilarity は2ベクトルのコサイン類似度を返す
// ゼロベクトルとの類似度は 0 とする
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
