package ingestion

import (
	"context"

	"github.com/google/uuid"
)

// ChunkStore はチャンクの永続化と類似検索を提供するインターフェース
// テスト時のモック用に消費者側で定義
type ChunkStore interface {
	// InsertChunk は embedding 未設定のチャンク行を作成する
	InsertChunk(ctx context.Context, chunk *SourceChunk) (uuid.UUID, error)

	// SetEmbedding は既存行にベクトルを設定する
	// InsertChunk との2段階書き込みは他の行の書き込みと安全に交錯できる
	SetEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error

	// SimilaritySearch はリポジトリ内のコサイン類似検索を行う
	// embedding が未設定の行は検索対象外。score > minScore の行のみを
	// スコア降順（同点は挿入順）で最大 limit 件返す
	SimilaritySearch(ctx context.Context, repositoryID uuid.UUID, queryVector []float32, limit int, minScore float64) ([]*Match, error)

	// DeleteChunksBySnapshot は指定世代のチャンクを削除する
	// 再インデックス時に旧世代を破棄するかどうかは呼び出し側のポリシー
	DeleteChunksBySnapshot(ctx context.Context, snapshotID uuid.UUID) error
}
