package github

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	giturls "github.com/whilp/git-urls"

	"github.com/jinford/gitscribe/internal/core/ingestion"
	"github.com/jinford/gitscribe/internal/infra/filter"
)

const (
	// DefaultMaxInFlight はblob取得の最大同時実行数
	DefaultMaxInFlight = 5
	// DefaultRef はref未指定時のデフォルトブランチ
	DefaultRef = "main"
)

// Client は GitHub REST API 経由のソースツリー列挙とコミット取得を提供する
type Client struct {
	gh          *github.Client
	ignore      *filter.IgnoreSet
	maxInFlight int
	logger      *slog.Logger
}

// Option は Client のオプション設定
type Option func(*Client)

// WithMaxInFlight はblob取得の同時実行数を上書きする
func WithMaxInFlight(n int) Option {
	return func(c *Client) {
		c.maxInFlight = n
	}
}

// WithIgnoreSet は除外セットを上書きする
func WithIgnoreSet(ignore *filter.IgnoreSet) Option {
	return func(c *Client) {
		c.ignore = ignore
	}
}

// WithLogger は Client にロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient は新しい Client を作成する
// token が空の場合は匿名アクセスとなる（レート制限が厳しい）
func NewClient(token string, opts ...Option) *Client {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}

	c := &Client{
		gh:          gh,
		ignore:      filter.Default(),
		maxInFlight: DefaultMaxInFlight,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxInFlight <= 0 {
		c.maxInFlight = DefaultMaxInFlight
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// apiClient はロケーションにトークンが指定されていればそれを優先する
func (c *Client) apiClient(loc ingestion.RepoLocation) *github.Client {
	if loc.Token != "" {
		return c.gh.WithAuthToken(loc.Token)
	}
	return c.gh
}

// SplitRepoURL は GitHub の URL から owner/repo を取り出す
// 形式が不正な場合は ErrInvalidRepoURL を返す（外部API呼び出し前に検証する）
func SplitRepoURL(rawURL string) (owner, repo string, err error) {
	u, err := giturls.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ingestion.ErrInvalidRepoURL, rawURL)
	}

	if !strings.Contains(u.Host, "github.com") {
		return "", "", fmt.Errorf("%w: host must be github.com: %s", ingestion.ErrInvalidRepoURL, rawURL)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: missing owner or repo: %s", ingestion.ErrInvalidRepoURL, rawURL)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// mapAPIError は go-github のエラーをコアのエラー分類に変換する
// 404 は終端エラー、403/429 はリトライ可能な FetchError として扱う
func mapAPIError(url string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &ingestion.FetchError{URL: url, StatusCode: http.StatusForbidden, Err: err}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &ingestion.FetchError{URL: url, StatusCode: http.StatusTooManyRequests, Err: err}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ingestion.ErrRepoNotFound, url)
		case http.StatusForbidden, http.StatusTooManyRequests:
			return &ingestion.FetchError{URL: url, StatusCode: respErr.Response.StatusCode, Err: err}
		}
	}

	return &ingestion.FetchError{URL: url, Err: err}
}
