package openai

import "fmt"

// fileSummarySystemPrompt はファイル要約のシステムプロンプト
const fileSummarySystemPrompt = `You are a code summarization assistant.

Your task is to summarize source code files and documentation in plain prose.

Guidelines:
- Focus on important functions, classes, sections, dependencies, and side effects
- Order items by importance (most important first)
- Be concise and factual - avoid speculation
- Do not include code blocks longer than 2 lines
- Keep the summary within 300 tokens`

// diffSummarySystemPrompt は差分要約のシステムプロンプト
const diffSummarySystemPrompt = `You are a code review assistant.

Your task is to summarize a commit diff in plain prose.

Guidelines:
- Describe what changed and where, not line-by-line mechanics
- Mention affected files or components by name
- Be concise and factual - avoid speculation
- Keep the summary within 200 tokens`

// buildFileSummaryPrompt はファイル要約のユーザープロンプトを構築する
func buildFileSummaryPrompt(path, content string) string {
	return fmt.Sprintf(`Summarize the following file within 300 tokens.
Include important functions, classes, sections, dependencies, and side effects.
Order items by importance (most important first).

File: %s

Content:
%s`, path, content)
}

// buildDiffSummaryPrompt は差分要約のユーザープロンプトを構築する
func buildDiffSummaryPrompt(diff string) string {
	return fmt.Sprintf(`Summarize the following commit diff within 200 tokens.
Describe what changed and which files or components are affected.

Diff:
%s`, diff)
}
