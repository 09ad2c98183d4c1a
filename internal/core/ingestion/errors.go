package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrRepoNotFound はリポジトリまたはrefが存在しない場合のエラー（リトライ不可）
	ErrRepoNotFound = errors.New("repository or ref not found")

	// ErrInvalidRepoURL はリポジトリURLの形式が不正な場合のエラー
	// 外部APIを呼び出す前のバリデーションで返される
	ErrInvalidRepoURL = errors.New("invalid repository URL")
)

// FetchError はリモート取得の一時的な失敗を表す
// 呼び出し側でリトライ可能（ウォーカー内部では自動リトライしない）
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed (status %d): %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch failed: %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreError は永続化層の失敗を表す
// チャンクの暗黙的な喪失は許容しないため、書き込み失敗は必ずこの型で表面化する
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %q failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
