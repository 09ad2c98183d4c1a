package commits

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// SummaryStatus は要約の生成結果を示す
// 空文字列の要約を「変更内容なし」と区別するための明示的なフラグ
type SummaryStatus string

const (
	SummaryStatusOK          SummaryStatus = "ok"
	SummaryStatusUnavailable SummaryStatus = "unavailable"
)

// CommitMeta はリモートから取得したコミットのメタデータ
// 作者・日時などはそのまま保持するだけで、本パッケージでは解釈しない
type CommitMeta struct {
	Hash            string
	Message         string
	AuthorName      string
	AuthorAvatarURL string
	CommittedAt     time.Time
}

// ProcessedCommit は差分要約済みのコミットを表す
// (RepositoryID, Hash) の組で一意。作成後の更新・削除は行わない
type ProcessedCommit struct {
	ID              uuid.UUID
	RepositoryID    uuid.UUID
	Hash            string
	Message         string
	AuthorName      string
	AuthorAvatarURL string
	CommittedAt     time.Time
	Summary         string
	SummaryStatus   SummaryStatus
	CreatedAt       time.Time
}

// Reader はリモートのコミット履歴と差分を取得するインターフェース
// テスト時のモック用に消費者側で定義
type Reader interface {
	// ListRecent は新しい順に最大 limit 件のコミットメタデータを返す
	ListRecent(ctx context.Context, loc ingestion.RepoLocation, limit int) ([]*CommitMeta, error)

	// FetchDiff は指定コミットの差分テキストを返す
	FetchDiff(ctx context.Context, loc ingestion.RepoLocation, hash string) (string, error)
}

// DiffSummarizer はコミット差分の要約を生成するインターフェース
type DiffSummarizer interface {
	SummarizeDiff(ctx context.Context, diff string) (string, error)
}

// Store は処理済みコミットの永続化を提供するインターフェース
type Store interface {
	InsertProcessedCommit(ctx context.Context, commit *ProcessedCommit) error

	// ListProcessedHashes は処理済みコミットハッシュの集合を返す
	ListProcessedHashes(ctx context.Context, repositoryID uuid.UUID) (map[string]struct{}, error)
}
