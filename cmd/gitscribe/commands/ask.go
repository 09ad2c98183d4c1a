package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gitscribe/internal/core/answer"
	"github.com/jinford/gitscribe/internal/infra/postgres"
)

// AskAction はインデックス済みリポジトリへの質問応答コマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("url")
	question := cmd.String("question")
	topK := cmd.Int("top-k")
	minScore := cmd.Float("min-score")
	showSources := cmd.Bool("show-sources")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	retriever := postgres.NewChunkRepository(appCtx.Database.Pool)

	svc := answer.NewService(
		appCtx.Embedder,
		retriever,
		appCtx.LLM,
		answer.WithRetrievalLimits(topK, minScore),
	)

	result, err := svc.Answer(ctx, question, repositoryID(repoURL))
	if err != nil {
		return fmt.Errorf("回答の生成に失敗: %w", err)
	}
	defer result.Stream.Close()

	for result.Stream.Next() {
		fmt.Print(result.Stream.Current())
	}
	fmt.Println()

	if err := result.Stream.Err(); err != nil {
		return fmt.Errorf("回答ストリームが中断されました: %w", err)
	}

	if showSources {
		fmt.Println("\nSources:")
		for _, ev := range result.Evidence {
			fmt.Printf("  %.3f  %s\n", ev.Score, ev.FileName)
		}
		if len(result.Evidence) == 0 {
			fmt.Println("  (no evidence above score floor)")
		}
	}

	return nil
}
