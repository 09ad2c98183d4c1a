package git

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// Walk はリポジトリのソースツリーを列挙する
//
// リポジトリをローカルに用意して ref を解決し、除外セットに一致しない
// ファイルをチャネルに流す。個別ファイルの読み取り失敗は
// FileResult.Err として流れ、列挙は継続する
func (c *Client) Walk(ctx context.Context, loc ingestion.RepoLocation) (<-chan ingestion.FileResult, error) {
	repo, err := c.openOrClone(ctx, loc)
	if err != nil {
		return nil, err
	}

	hash, err := c.resolveRef(repo, loc.Ref)
	if err != nil {
		return nil, err
	}

	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, &ingestion.FetchError{URL: loc.URL, Err: err}
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, &ingestion.FetchError{URL: loc.URL, Err: err}
	}

	results := make(chan ingestion.FileResult)

	go func() {
		defer close(results)

		iter := tree.Files()
		defer iter.Close()

		_ = iter.ForEach(func(f *object.File) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.ignore.Match(f.Name) {
				return nil
			}

			result := ingestion.FileResult{Path: f.Name}
			content, err := f.Contents()
			if err != nil {
				result.Err = &ingestion.FetchError{URL: loc.URL, Err: err}
			} else {
				result.File = &ingestion.SourceFile{
					Path:    f.Name,
					Content: content,
					Size:    f.Size,
				}
			}

			select {
			case results <- result:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return results, nil
}

// インターフェース実装の確認
var _ ingestion.Walker = (*Client)(nil)
