package github

import (
	"context"
	"sync"

	"github.com/google/go-github/v57/github"

	"github.com/jinford/gitscribe/internal/core/ingestion"
)

// Walk はリポジトリのソースツリーを列挙する
//
// ref を解決したのち再帰的にツリーを取得し、除外セットに一致しない
// blob を maxInFlight 並列で取得してチャネルに流す。
// 個別 blob の取得失敗は FileResult.Err として流れ、列挙は継続する
func (c *Client) Walk(ctx context.Context, loc ingestion.RepoLocation) (<-chan ingestion.FileResult, error) {
	owner, repo, err := SplitRepoURL(loc.URL)
	if err != nil {
		return nil, err
	}

	ref := loc.Ref
	if ref == "" {
		ref = DefaultRef
	}

	gh := c.apiClient(loc)

	sha, _, err := gh.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	if err != nil {
		return nil, mapAPIError(loc.URL, err)
	}

	tree, _, err := gh.Git.GetTree(ctx, owner, repo, sha, true)
	if err != nil {
		return nil, mapAPIError(loc.URL, err)
	}
	c.warnIfTruncated(tree, owner, repo)

	var blobs []*github.TreeEntry
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if c.ignore.Match(entry.GetPath()) {
			continue
		}
		blobs = append(blobs, entry)
	}

	results := make(chan ingestion.FileResult)
	entries := make(chan *github.TreeEntry)

	go func() {
		defer close(entries)
		for _, entry := range blobs {
			select {
			case entries <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(c.maxInFlight)
	for i := 0; i < c.maxInFlight; i++ {
		go func() {
			defer wg.Done()
			for entry := range entries {
				result := c.fetchBlob(ctx, gh, owner, repo, loc.URL, entry)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// warnIfTruncated はツリーが切り詰められている場合に警告を出す
// GitHub API は巨大なツリーを truncated で返すことがあり、
// 返らなかったエントリは列挙されない
func (c *Client) warnIfTruncated(tree *github.Tree, owner, repo string) {
	if !tree.GetTruncated() {
		return
	}
	c.logger.Warn("ツリーが切り詰められました。一部のファイルはインデックスされません",
		"owner", owner,
		"repo", repo,
		"entries", len(tree.Entries),
	)
}

// fetchBlob は1ファイル分のblobを取得する
func (c *Client) fetchBlob(
	ctx context.Context,
	gh *github.Client,
	owner, repo, repoURL string,
	entry *github.TreeEntry,
) ingestion.FileResult {
	content, _, err := gh.Git.GetBlobRaw(ctx, owner, repo, entry.GetSHA())
	if err != nil {
		return ingestion.FileResult{
			Path: entry.GetPath(),
			Err:  mapAPIError(repoURL, err),
		}
	}

	return ingestion.FileResult{
		Path: entry.GetPath(),
		File: &ingestion.SourceFile{
			Path:    entry.GetPath(),
			Content: string(content),
			Size:    int64(entry.GetSize()),
		},
	}
}

// インターフェース実装の確認
var _ ingestion.Walker = (*Client)(nil)
