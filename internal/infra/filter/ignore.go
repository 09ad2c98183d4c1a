package filter

import (
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultNames はファイル名の完全一致で除外する既定セット
// ロックファイル・環境ファイルなど、要約する価値のないもの
var defaultNames = []string{
	"package.json",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"go.sum",
	"Cargo.lock",
	"Gemfile.lock",
	".gitignore",
	".npmignore",
	".prettierrc.js",
	".eslintrc.js",
	".babelrc.js",
	".env",
	".env.local",
	".env.development",
	".env.test",
	".env.production",
}

// defaultSegments はパスセグメントの一致で除外する既定セット
// ビルド成果物・依存ディレクトリ・VCSメタデータ
var defaultSegments = []string{
	"node_modules",
	"vendor",
	"dist",
	"build",
	"out",
	"public",
	"coverage",
	".git",
	".github",
	".vscode",
	".idea",
}

// IgnoreSet はインデックス対象から除外するパスの集合を表す
// 完全一致のファイル名、パスセグメント、gitignore 形式のパターンを併用できる。
// バイナリ判定は行わない（バイナリの除外はパターン側のポリシー）
type IgnoreSet struct {
	names    map[string]struct{}
	segments map[string]struct{}
	matcher  *gitignore.GitIgnore
}

// NewIgnoreSet は除外セットを作成する
// patterns は gitignore 形式の行（空でもよい）
func NewIgnoreSet(names, segments, patterns []string) *IgnoreSet {
	s := &IgnoreSet{
		names:    make(map[string]struct{}, len(names)),
		segments: make(map[string]struct{}, len(segments)),
	}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	for _, seg := range segments {
		s.segments[seg] = struct{}{}
	}

	if len(patterns) > 0 {
		s.matcher = gitignore.CompileIgnoreLines(patterns...)
	}

	return s
}

// Default は既定の除外セットを返す
func Default() *IgnoreSet {
	return NewIgnoreSet(defaultNames, defaultSegments, nil)
}

// Match はパスが除外対象かどうかを判定する
func (s *IgnoreSet) Match(path string) bool {
	segments := strings.Split(path, "/")

	base := segments[len(segments)-1]
	if _, ok := s.names[base]; ok {
		return true
	}

	for _, seg := range segments {
		if _, ok := s.segments[seg]; ok {
			return true
		}
	}

	if s.matcher != nil && s.matcher.MatchesPath(path) {
		return true
	}

	return false
}
