package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	// DefaultTopK は類似検索で取得する最大件数
	DefaultTopK = 10
	// DefaultMinScore は根拠として採用する類似度スコアの下限
	DefaultMinScore = 0.5
	// DefaultPromptTokenBudget はプロンプト全体のトークン予算
	DefaultPromptTokenBudget = 12000
)

// Service は質問応答のビジネスロジックを提供する
type Service struct {
	embedder  Embedder
	retriever Retriever
	generator Generator
	counter   TokenCounter
	topK      int
	minScore  float64
	budget    int
	logger    *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRetrievalLimits は検索件数とスコア下限を上書きする
func WithRetrievalLimits(topK int, minScore float64) ServiceOption {
	return func(s *Service) {
		s.topK = topK
		s.minScore = minScore
	}
}

// WithTokenBudget はプロンプトのトークン予算を上書きする
func WithTokenBudget(budget int) ServiceOption {
	return func(s *Service) {
		s.budget = budget
	}
}

// NewService は新しい Service を作成する
func NewService(embedder Embedder, retriever Retriever, generator Generator, opts ...ServiceOption) *Service {
	svc := &Service{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		counter:   NewTokenCounter(),
		topK:      DefaultTopK,
		minScore:  DefaultMinScore,
		budget:    DefaultPromptTokenBudget,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Answer は質問に対して検索拡張付きの回答ストリームを返す
//
// 根拠リストは生成を待たずに即座に確定する。根拠が1件もない場合でも
// 生成は実行され、空の Evidence と共に返る（劣化モードであってエラーではない）。
// ストリームの読み出しを中断する場合は ctx をキャンセルすること
func (s *Service) Answer(ctx context.Context, question string, repositoryID uuid.UUID) (*Result, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := s.retriever.SimilaritySearch(ctx, repositoryID, queryVector, s.topK, s.minScore)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	evidence := make([]Evidence, 0, len(matches))
	for _, m := range matches {
		evidence = append(evidence, Evidence{
			FileName:   m.FileName,
			SourceCode: m.SourceCode,
			Summary:    m.Summary,
			Score:      m.Score,
		})
	}

	s.logger.Info("retrieval completed",
		"repositoryID", repositoryID.String(),
		"matches", len(evidence),
	)
	if len(evidence) == 0 {
		s.logger.Warn("no evidence above score floor; answering without grounding context",
			"repositoryID", repositoryID.String(),
		)
	}

	prompt := BuildAnswerPrompt(question, evidence, s.budget, s.counter)

	stream, err := s.generator.StreamCompletion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to start generation: %w", err)
	}

	return &Result{
		Evidence: evidence,
		Stream:   stream,
	}, nil
}
