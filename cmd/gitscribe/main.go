package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gitscribe/cmd/gitscribe/commands"
	"github.com/jinford/gitscribe/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger.New(logger.DefaultConfig())

	app := &cli.Command{
		Name:  "gitscribe",
		Usage: "リポジトリのインデックス化と検索拡張付き質問応答",
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "リポジトリのソースツリーをインデックス化",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "url",
						Usage:    "リポジトリURL",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "ref",
						Usage: "ブランチ名・タグ名・コミットハッシュ（省略時はデフォルトブランチ）",
					},
					&cli.StringFlag{
						Name:  "walker",
						Usage: "ソースツリーの取得方式 (github/git)",
						Value: "github",
					},
				},
				Action: commands.IndexAction,
			},
			{
				Name:  "ask",
				Usage: "インデックス済みリポジトリに質問する",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "url",
						Usage:    "リポジトリURL",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "question",
						Usage:    "質問文",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "根拠として取得する最大件数",
						Value: 10,
					},
					&cli.FloatFlag{
						Name:  "min-score",
						Usage: "根拠として採用する類似度スコアの下限",
						Value: 0.5,
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "回答後に根拠ファイル一覧を表示",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "commits",
				Usage: "コミット要約管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "ingest",
						Usage: "未処理の最新コミットを要約して登録",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "url",
								Usage:    "リポジトリURL",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "ref",
								Usage: "ブランチ名（省略時はデフォルトブランチ）",
							},
							&cli.StringFlag{
								Name:  "walker",
								Usage: "コミット履歴の取得方式 (github/git)",
								Value: "github",
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "取得する最新コミットの件数",
								Value: 10,
							},
						},
						Action: commands.CommitsIngestAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
