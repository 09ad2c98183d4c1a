package answer

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter はテキストのトークン数を数えるインターフェース
type TokenCounter interface {
	Count(text string) int
}

// tiktokenCounter は tiktoken のエンコーディングでトークン数を数える
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// heuristicCounter は 1トークン≒4文字 の近似でトークン数を見積もる
// エンコーディングが読み込めない環境向けのフォールバック
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return utf8.RuneCountInString(text)/4 + 1
}

// NewTokenCounter はトークンカウンタを作成する
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return heuristicCounter{}
	}
	return &tiktokenCounter{enc: enc}
}
