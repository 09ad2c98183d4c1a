package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/jinford/gitscribe/internal/core/ingestion"
	"github.com/jinford/gitscribe/internal/infra/language"
	"github.com/jinford/gitscribe/internal/infra/postgres"
)

// IndexAction はリポジトリのソースツリーをインデックス化するコマンドのアクション
func IndexAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("url")
	ref := cmd.String("ref")
	walkerMode := cmd.String("walker")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	walker, err := appCtx.newWalker(walkerMode)
	if err != nil {
		return err
	}

	store := postgres.NewChunkRepository(appCtx.Database.Pool)

	// 全体のファイル数は事前に分からないためスピナー表示
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	var barMu sync.Mutex

	svc := ingestion.NewService(
		walker,
		appCtx.LLM,
		appCtx.Embedder,
		store,
		&ingestion.ServiceConfig{WorkerCount: appCtx.Config.Ingest.MaxConcurrency},
		ingestion.WithLanguageDetector(language.NewDetector()),
		ingestion.WithOnFile(func(path string, err error) {
			barMu.Lock()
			defer barMu.Unlock()
			_ = bar.Add(1)
		}),
	)

	loc := ingestion.RepoLocation{
		URL:   repoURL,
		Ref:   ref,
		Token: appCtx.Config.GitHub.Token,
	}

	report, err := svc.Ingest(ctx, repositoryID(repoURL), loc)
	if err != nil {
		return fmt.Errorf("インデックス化に失敗: %w", err)
	}
	_ = bar.Finish()

	fmt.Printf("indexed: %d files, failed: %d files (snapshot %s)\n",
		report.Indexed, report.Failed, report.SnapshotID)

	for _, failure := range report.Failures {
		slog.Warn("ファイルのインデックス化に失敗",
			"file", failure.FileName,
			"stage", string(failure.Stage),
			"error", failure.Err,
		)
	}

	return nil
}
