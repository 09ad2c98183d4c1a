package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/gitscribe/internal/core/answer"
	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// ChunkRepository は ingestion.ChunkStore を実装する PostgreSQL リポジトリ。
// 類似検索は pgvector のコサイン距離演算子に委譲する
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository は新しい ChunkRepository を返す。
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

var (
	_ ingestion.ChunkStore = (*ChunkRepository)(nil)
	_ answer.Retriever     = (*ChunkRepository)(nil)
)

// InsertChunk は embedding 未設定のチャンク行を作成する
func (r *ChunkRepository) InsertChunk(ctx context.Context, chunk *ingestion.SourceChunk) (uuid.UUID, error) {
	id := chunk.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	const query = `
		INSERT INTO source_chunks (id, repository_id, snapshot_id, file_name, source_code, summary, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		id,
		chunk.RepositoryID,
		chunk.SnapshotID,
		chunk.FileName,
		chunk.SourceCode,
		chunk.Summary,
		chunk.Language,
		chunk.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, &ingestion.StoreError{Op: "insert chunk", Err: err}
	}

	return id, nil
}

// SetEmbedding は既存行にベクトルを設定する
func (r *ChunkRepository) SetEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	const query = `UPDATE source_chunks SET embedding = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, pgvector.NewVector(vector))
	if err != nil {
		return &ingestion.StoreError{Op: "set embedding", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &ingestion.StoreError{Op: "set embedding", Err: fmt.Errorf("chunk %s not found", id)}
	}

	return nil
}

// SimilaritySearch はリポジトリ内のコサイン類似検索を行う
//
// embedding が未設定の行は対象外。スコアは 1 - コサイン距離 で、
// minScore より大きい行のみをスコア降順・同点は挿入順で返す
func (r *ChunkRepository) SimilaritySearch(ctx context.Context, repositoryID uuid.UUID, queryVector []float32, limit int, minScore float64) ([]*ingestion.Match, error) {
	const query = `
		SELECT file_name, source_code, summary, 1 - (embedding <=> $2) AS score
		FROM source_chunks
		WHERE repository_id = $1
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $2) > $3
		ORDER BY score DESC, seq ASC
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query,
		repositoryID,
		pgvector.NewVector(queryVector),
		minScore,
		limit,
	)
	if err != nil {
		return nil, &ingestion.StoreError{Op: "similarity search", Err: err}
	}
	defer rows.Close()

	var matches []*ingestion.Match
	for rows.Next() {
		match := &ingestion.Match{}
		if err := rows.Scan(&match.FileName, &match.SourceCode, &match.Summary, &match.Score); err != nil {
			return nil, &ingestion.StoreError{Op: "similarity search", Err: err}
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, &ingestion.StoreError{Op: "similarity search", Err: err}
	}

	return matches, nil
}

// DeleteChunksBySnapshot は指定世代のチャンクを削除する
func (r *ChunkRepository) DeleteChunksBySnapshot(ctx context.Context, snapshotID uuid.UUID) error {
	const query = `DELETE FROM source_chunks WHERE snapshot_id = $1`

	if _, err := r.pool.Exec(ctx, query, snapshotID); err != nil {
		return &ingestion.StoreError{Op: "delete chunks by snapshot", Err: err}
	}

	return nil
}
