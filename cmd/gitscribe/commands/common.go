package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/gitscribe/internal/core/commits"
	"github.com/jinford/gitscribe/internal/core/ingestion"
	"github.com/jinford/gitscribe/internal/infra/git"
	"github.com/jinford/gitscribe/internal/infra/github"
	"github.com/jinford/gitscribe/internal/infra/openai"
	"github.com/jinford/gitscribe/pkg/config"
	"github.com/jinford/gitscribe/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config   *config.Config
	Database *db.DB
	LLM      *openai.Client
	Embedder *openai.Embedder
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	llm, err := openai.NewClientWithAPIKey(cfg.OpenAI.APIKey, cfg.OpenAI.LLMModel)
	if err != nil {
		database.Close()
		return nil, err
	}

	embedder := openai.NewEmbedder(cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)

	return &AppContext{
		Config:   cfg,
		Database: database,
		LLM:      llm,
		Embedder: embedder,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}

// newWalker は取得方式に応じたウォーカーを作成する
func (ac *AppContext) newWalker(mode string) (ingestion.Walker, error) {
	switch mode {
	case "github":
		return github.NewClient(ac.Config.GitHub.Token), nil
	case "git":
		return git.NewClient(
			ac.Config.Git.CloneDir,
			ac.Config.Git.DefaultBranch,
			git.WithSSHKey(ac.Config.Git.SSHKeyPath, ac.Config.Git.SSHPassword),
		), nil
	default:
		return nil, fmt.Errorf("unknown walker mode: %s (expected github or git)", mode)
	}
}

// newCommitReader は取得方式に応じたコミットリーダーを作成する
func (ac *AppContext) newCommitReader(mode string) (commits.Reader, error) {
	walker, err := ac.newWalker(mode)
	if err != nil {
		return nil, err
	}

	reader, ok := walker.(commits.Reader)
	if !ok {
		return nil, fmt.Errorf("walker mode %s does not support commit history", mode)
	}
	return reader, nil
}

// repositoryID はリポジトリURLから決定的なIDを導出する
// 同じURLは常に同じIDになる
func repositoryID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url))
}
