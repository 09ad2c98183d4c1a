package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/gitscribe/internal/core/commits"
	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// CommitRepository は commits.Store を実装する PostgreSQL リポジトリ。
type CommitRepository struct {
	pool *pgxpool.Pool
}

// NewCommitRepository は新しい CommitRepository を返す。
func NewCommitRepository(pool *pgxpool.Pool) *CommitRepository {
	return &CommitRepository{pool: pool}
}

var _ commits.Store = (*CommitRepository)(nil)

// InsertProcessedCommit は要約済みコミットを永続化する
func (r *CommitRepository) InsertProcessedCommit(ctx context.Context, commit *commits.ProcessedCommit) error {
	const query = `
		INSERT INTO processed_commits (id, repository_id, commit_hash, message, author_name, author_avatar_url, committed_at, summary, summary_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		commit.ID,
		commit.RepositoryID,
		commit.Hash,
		commit.Message,
		commit.AuthorName,
		commit.AuthorAvatarURL,
		commit.CommittedAt,
		commit.Summary,
		string(commit.SummaryStatus),
		commit.CreatedAt,
	)
	if err != nil {
		return &ingestion.StoreError{Op: "insert processed commit", Err: err}
	}

	return nil
}

// ListProcessedHashes は処理済みコミットハッシュの集合を返す
func (r *CommitRepository) ListProcessedHashes(ctx context.Context, repositoryID uuid.UUID) (map[string]struct{}, error) {
	const query = `SELECT commit_hash FROM processed_commits WHERE repository_id = $1`

	rows, err := r.pool.Query(ctx, query, repositoryID)
	if err != nil {
		return nil, &ingestion.StoreError{Op: "list processed hashes", Err: err}
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, &ingestion.StoreError{Op: "list processed hashes", Err: err}
		}
		hashes[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &ingestion.StoreError{Op: "list processed hashes", Err: err}
	}

	return hashes, nil
}
