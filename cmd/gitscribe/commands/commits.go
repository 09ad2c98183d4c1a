package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gitscribe/internal/core/commits"
	"github.com/jinford/gitscribe/internal/core/ingestion"
	"github.com/jinford/gitscribe/internal/infra/postgres"
)

// CommitsIngestAction は未処理コミットを要約して登録するコマンドのアクション
func CommitsIngestAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("url")
	ref := cmd.String("ref")
	walkerMode := cmd.String("walker")
	limit := cmd.Int("limit")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	reader, err := appCtx.newCommitReader(walkerMode)
	if err != nil {
		return err
	}

	store := postgres.NewCommitRepository(appCtx.Database.Pool)

	svc := commits.NewService(reader, appCtx.LLM, store,
		commits.WithFetchLimit(limit),
	)

	loc := ingestion.RepoLocation{
		URL:   repoURL,
		Ref:   ref,
		Token: appCtx.Config.GitHub.Token,
	}

	processed, err := svc.IngestNew(ctx, repositoryID(repoURL), loc)
	if err != nil {
		// 永続化エラーは部分的な成功と共に返りうる
		slog.Error("コミット登録で一部エラーが発生", "error", err)
	}

	if len(processed) == 0 && err == nil {
		fmt.Println("no new commits")
		return nil
	}

	for _, commit := range processed {
		status := ""
		if commit.SummaryStatus == commits.SummaryStatusUnavailable {
			status = " (summary unavailable)"
		}
		fmt.Printf("%.8s  %s%s\n", commit.Hash, firstLine(commit.Message), status)
	}
	fmt.Printf("processed %d commits\n", len(processed))

	return err
}

// firstLine はコミットメッセージの1行目を返す
func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}
