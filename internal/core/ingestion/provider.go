package ingestion

import (
	"context"
)

// RepoLocation はリモートソースツリーの参照先を表す
type RepoLocation struct {
	URL   string
	Ref   string // 空の場合は実装側のデフォルトブランチ
	Token string // アクセストークン（任意）
}

// SourceFile はソースツリーから取得した1ファイルを表す
type SourceFile struct {
	Path    string
	Content string
	Size    int64
}

// FileResult はウォーカーが産出する1件分の結果
// Err が設定されている場合、そのファイルの取得に失敗している（File は nil）
type FileResult struct {
	Path string
	File *SourceFile
	Err  error
}

// Walker はリモートソースツリーを列挙するインターフェース
// テスト時のモック用に消費者側で定義
type Walker interface {
	// Walk は除外セットに一致しないファイルの遅延シーケンスを返す
	// リポジトリ自体を列挙できない場合のみ同期エラーを返す
	// （存在しないリポジトリ/refは ErrRepoNotFound、一時的な失敗は *FetchError）
	// 個別ファイルの取得失敗は FileResult.Err としてチャネルに流れる
	Walk(ctx context.Context, loc RepoLocation) (<-chan FileResult, error)
}

// Summarizer はファイル内容の自然言語要約を生成するインターフェース
type Summarizer interface {
	SummarizeFile(ctx context.Context, path, content string) (string, error)
}

// Embedder はテキストをベクトルに変換するインターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// LanguageDetector はファイルのプログラミング言語を判定するインターフェース
type LanguageDetector interface {
	Detect(path string, content []byte) string
}
