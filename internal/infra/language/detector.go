package language

import (
	"github.com/go-enry/go-enry/v2"
)

// Detector は go-enry によるプログラミング言語判定を提供する
type Detector struct{}

// NewDetector は新しい Detector を作成する
func NewDetector() *Detector {
	return &Detector{}
}

// Detect はファイルパスと内容から言語名を返す
// 判定できない場合は空文字列を返す
func (d *Detector) Detect(path string, content []byte) string {
	return enry.GetLanguage(path, content)
}
