package github

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/jinford/gitscribe/internal/core/commits"
	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// ListRecent は新しい順に最大 limit 件のコミットメタデータを取得する
func (c *Client) ListRecent(ctx context.Context, loc ingestion.RepoLocation, limit int) ([]*commits.CommitMeta, error) {
	owner, repo, err := SplitRepoURL(loc.URL)
	if err != nil {
		return nil, err
	}

	gh := c.apiClient(loc)

	list, _, err := gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, mapAPIError(loc.URL, err)
	}

	metas := make([]*commits.CommitMeta, 0, len(list))
	for _, rc := range list {
		meta := &commits.CommitMeta{
			Hash:            rc.GetSHA(),
			Message:         rc.GetCommit().GetMessage(),
			AuthorName:      rc.GetCommit().GetAuthor().GetName(),
			AuthorAvatarURL: rc.GetAuthor().GetAvatarURL(),
			CommittedAt:     rc.GetCommit().GetAuthor().GetDate().Time,
		}
		metas = append(metas, meta)
	}

	return metas, nil
}

// FetchDiff は指定コミットの差分をunified diff形式で取得する
func (c *Client) FetchDiff(ctx context.Context, loc ingestion.RepoLocation, hash string) (string, error) {
	owner, repo, err := SplitRepoURL(loc.URL)
	if err != nil {
		return "", err
	}

	gh := c.apiClient(loc)

	diff, _, err := gh.Repositories.GetCommitRaw(ctx, owner, repo, hash, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", mapAPIError(loc.URL, err)
	}

	return diff, nil
}

// インターフェース実装の確認
var _ commits.Reader = (*Client)(nil)
