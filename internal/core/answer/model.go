package answer

import (
	"context"

	"github.com/google/uuid"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// Evidence は回答の根拠として提示するチャンクを表す
type Evidence struct {
	FileName   string
	SourceCode string
	Summary    string
	Score      float64
}

// Result は質問応答の結果を表す
// Evidence は即座に確定し、Stream は生成の進行に応じて逐次読み出せる
type Result struct {
	Evidence []Evidence
	Stream   TextStream
}

// TextStream は生成テキストの断片を順方向にのみ読み出すストリーム
// 単一コンシューマ前提で、再読み出しはできない。
// Next が false を返した後、Err が nil なら正常終了、非nilならエラー終了
type TextStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// Generator はストリーミング生成のインターフェース
// テスト時のモック用に消費者側で定義
type Generator interface {
	// StreamCompletion は生成を開始し、断片のストリームを返す
	// ctx のキャンセルで上流のリクエストは速やかに解放される
	StreamCompletion(ctx context.Context, prompt string) (TextStream, error)
}

// Embedder は質問文をベクトルに変換するインターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever はリポジトリ内の類似チャンク検索を提供するインターフェース
type Retriever interface {
	SimilaritySearch(ctx context.Context, repositoryID uuid.UUID, queryVector []float32, limit int, minScore float64) ([]*ingestion.Match, error)
}
