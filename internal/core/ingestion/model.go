package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// SourceChunk はリポジトリの1ファイル分のインデックス単位を表す
// Embedding は Summary から生成される（ソースコード本文からではない）
type SourceChunk struct {
	ID           uuid.UUID
	RepositoryID uuid.UUID
	SnapshotID   uuid.UUID // インデックス実行ごとに発行される世代識別子
	FileName     string
	SourceCode   string
	Summary      string
	Language     string
	CreatedAt    time.Time
}

// Match は類似検索の1件分の結果を表す
type Match struct {
	FileName   string
	SourceCode string
	Summary    string
	Score      float64
}

// Stage はファイル処理がどの段階で失敗したかを示す
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageSummarize Stage = "summarize"
	StageEmbed     Stage = "embed"
	StagePersist   Stage = "persist"
)

// FileFailure は1ファイル分の失敗記録
type FileFailure struct {
	FileName string
	Stage    Stage
	Err      error
}

// Report はインデックス実行の集計結果
// 処理は完了順に収集されるため、ファイルの並び順は保証されない
type Report struct {
	RepositoryID uuid.UUID
	SnapshotID   uuid.UUID
	Indexed      int
	Failed       int
	Failures     []FileFailure
}
