package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"

	"github.com/jinford/gitscribe/internal/core/ingestion"
	"github.com/jinford/gitscribe/internal/infra/filter"
)

// Client は clone 型のソースツリー列挙とコミット取得を提供する
// SSH・HTTPS・ローカルパスのリポジトリに対応する
type Client struct {
	cloneBaseDir  string
	defaultBranch string
	sshKeyPath    string
	sshPassword   string
	ignore        *filter.IgnoreSet
}

// Option は Client のオプション設定
type Option func(*Client)

// WithSSHKey はSSH秘密鍵を設定する
func WithSSHKey(keyPath, password string) Option {
	return func(c *Client) {
		c.sshKeyPath = keyPath
		c.sshPassword = password
	}
}

// WithIgnoreSet は除外セットを上書きする
func WithIgnoreSet(ignore *filter.IgnoreSet) Option {
	return func(c *Client) {
		c.ignore = ignore
	}
}

// NewClient は新しい Client を作成する
func NewClient(cloneBaseDir, defaultBranch string, opts ...Option) *Client {
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	c := &Client{
		cloneBaseDir:  cloneBaseDir,
		defaultBranch: defaultBranch,
		ignore:        filter.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// localPath は Git URL からクローン先ディレクトリを決定する
// 例: git@github.com:user/repo.git -> <base>/github.com/user/repo
func (c *Client) localPath(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ingestion.ErrInvalidRepoURL, gitURL)
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	if hostname == "" {
		// ローカルパス指定の場合はそのまま開く
		if u.Path == "" {
			return "", fmt.Errorf("%w: empty path: %s", ingestion.ErrInvalidRepoURL, gitURL)
		}
		return u.Path, nil
	}

	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" {
		return "", fmt.Errorf("%w: empty path: %s", ingestion.ErrInvalidRepoURL, gitURL)
	}

	return filepath.Join(c.cloneBaseDir, hostname, path), nil
}

// openOrClone はリポジトリをローカルに用意して開く
func (c *Client) openOrClone(ctx context.Context, loc ingestion.RepoLocation) (*git.Repository, error) {
	repoPath, err := c.localPath(loc.URL)
	if err != nil {
		return nil, err
	}

	// 既にクローン済みなら最新化のみ行う
	if _, statErr := os.Stat(filepath.Join(repoPath, ".git")); statErr == nil {
		repo, err := git.PlainOpen(repoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository: %w", err)
		}
		if err := c.fetch(ctx, repo, loc); err != nil {
			return nil, err
		}
		return repo, nil
	}

	if repoPath == loc.URL || !strings.Contains(loc.URL, ":") {
		// ローカルリポジトリはクローンせずに開く
		repo, err := git.PlainOpen(repoPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ingestion.ErrRepoNotFound, loc.URL)
		}
		return repo, nil
	}

	auth, err := c.auth(loc)
	if err != nil {
		return nil, err
	}

	repo, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:  loc.URL,
		Auth: auth,
	})
	if err != nil {
		return nil, mapTransportError(loc.URL, err)
	}

	return repo, nil
}

// fetch はリモートの更新を取り込む
func (c *Client) fetch(ctx context.Context, repo *git.Repository, loc ingestion.RepoLocation) error {
	remote, err := repo.Remote("origin")
	if err != nil {
		// リモートのないローカルリポジトリはそのまま使う
		return nil
	}

	auth, err := c.auth(loc)
	if err != nil {
		return err
	}

	err = remote.FetchContext(ctx, &git.FetchOptions{Auth: auth})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return mapTransportError(loc.URL, err)
	}

	return nil
}

// auth はロケーションに応じた認証方式を返す
func (c *Client) auth(loc ingestion.RepoLocation) (transport.AuthMethod, error) {
	if loc.Token != "" {
		return &githttp.BasicAuth{Username: "git", Password: loc.Token}, nil
	}

	if c.sshKeyPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(c.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	auth, err := ssh.NewPublicKeysFromFile("git", c.sshKeyPath, c.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}

	return auth, nil
}

// resolveRef はブランチ・リモートブランチ・タグ・ハッシュの順で ref を解決する
func (c *Client) resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if ref == "" {
		ref = c.defaultBranch
	}

	branchRef, err := repo.Reference(plumbing.NewBranchReferenceName(ref), true)
	if err == nil {
		return branchRef.Hash(), nil
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true)
	if err == nil {
		return remoteRef.Hash(), nil
	}

	tagRef, err := repo.Reference(plumbing.NewTagReferenceName(ref), true)
	if err == nil {
		return tagRef.Hash(), nil
	}

	if ref == "HEAD" {
		headRef, err := repo.Head()
		if err == nil {
			return headRef.Hash(), nil
		}
	}

	hash := plumbing.NewHash(ref)
	if !hash.IsZero() {
		if _, err := repo.CommitObject(hash); err == nil {
			return hash, nil
		}
	}

	return plumbing.ZeroHash, fmt.Errorf("%w: ref %s", ingestion.ErrRepoNotFound, ref)
}

// mapTransportError は go-git のトランスポートエラーをコアのエラー分類に変換する
func mapTransportError(url string, err error) error {
	if errors.Is(err, transport.ErrRepositoryNotFound) {
		return fmt.Errorf("%w: %s", ingestion.ErrRepoNotFound, url)
	}
	return &ingestion.FetchError{URL: url, Err: err}
}
