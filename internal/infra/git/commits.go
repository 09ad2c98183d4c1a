package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jinford/gitscribe/internal/core/commits"
	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// ListRecent は新しい順に最大 limit 件のコミットメタデータを取得する
func (c *Client) ListRecent(ctx context.Context, loc ingestion.RepoLocation, limit int) ([]*commits.CommitMeta, error) {
	repo, err := c.openOrClone(ctx, loc)
	if err != nil {
		return nil, err
	}

	hash, err := c.resolveRef(repo, loc.Ref)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: hash})
	if err != nil {
		return nil, &ingestion.FetchError{URL: loc.URL, Err: err}
	}
	defer iter.Close()

	metas := make([]*commits.CommitMeta, 0, limit)
	for len(metas) < limit {
		commit, err := iter.Next()
		if err != nil {
			// ルートコミットまで到達した
			break
		}

		metas = append(metas, &commits.CommitMeta{
			Hash:        commit.Hash.String(),
			Message:     commit.Message,
			AuthorName:  commit.Author.Name,
			CommittedAt: commit.Author.When,
		})
	}

	return metas, nil
}

// FetchDiff は指定コミットの差分をunified diff形式で取得する
// ルートコミットの場合は空ツリーとの差分を返す
func (c *Client) FetchDiff(ctx context.Context, loc ingestion.RepoLocation, hash string) (string, error) {
	repo, err := c.openOrClone(ctx, loc)
	if err != nil {
		return "", err
	}

	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return "", fmt.Errorf("failed to resolve commit %s: %w", hash, err)
	}

	currentTree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to load commit tree: %w", err)
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return "", fmt.Errorf("failed to resolve parent commit: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return "", fmt.Errorf("failed to load parent tree: %w", err)
		}
	}

	changes, err := object.DiffTreeContext(ctx, parentTree, currentTree)
	if err != nil {
		return "", fmt.Errorf("failed to diff trees: %w", err)
	}

	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to build patch: %w", err)
	}

	return patch.String(), nil
}

// インターフェース実装の確認
var _ commits.Reader = (*Client)(nil)
