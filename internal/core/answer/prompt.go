package answer

import (
	"fmt"
	"strings"
)

// BuildAnswerPrompt は質問応答用のプロンプトを構築する
//
// 根拠は検索順（スコア降順）のまま連結し、トークン予算を超えた時点で
// 以降の根拠は含めない。根拠が空の場合でもプロンプトは成立する
// （モデルは一般知識で回答する）
func BuildAnswerPrompt(question string, evidence []Evidence, budget int, counter TokenCounter) string {
	var sb strings.Builder

	sb.WriteString("あなたはリポジトリのコードベースに精通した技術アシスタントです。\n")
	sb.WriteString("以下のコンテキスト情報を基に、ユーザーの質問に正確かつ簡潔に回答してください。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- コンテキストに含まれる情報を優先して回答してください\n")
	sb.WriteString("- 該当するファイルパスを明示してください\n")
	sb.WriteString("- コンテキストがない場合は一般知識で回答し、その旨を述べてください\n\n")

	sb.WriteString("## コンテキスト: 関連ファイル\n")
	if len(evidence) > 0 {
		used := counter.Count(sb.String())
		for i, ev := range evidence {
			section := formatEvidence(i, ev)
			cost := counter.Count(section)
			if used+cost > budget {
				break
			}
			sb.WriteString(section)
			used += cost
		}
	} else {
		sb.WriteString("(該当するファイルはありません)\n\n")
	}

	sb.WriteString("## ユーザーの質問\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("## 回答\n")

	return sb.String()
}

// formatEvidence は根拠1件分のセクションを整形する
func formatEvidence(index int, ev Evidence) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("### [ファイル %d]\n", index+1))
	sb.WriteString(fmt.Sprintf("ファイルパス: %s\n", ev.FileName))
	sb.WriteString(fmt.Sprintf("関連度スコア: %.3f\n", ev.Score))
	sb.WriteString("ファイル要約:\n")
	sb.WriteString(ev.Summary)
	sb.WriteString("\nソースコード:\n```\n")
	sb.WriteString(ev.SourceCode)
	sb.WriteString("\n```\n\n")
	return sb.String()
}
