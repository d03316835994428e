// Package github implements the PagesSource and InstallationTokenExchanger
// ports using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PagesSource = (*Client)(nil)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com/"

// TokenSource supplies the installation access token for each request.
type TokenSource interface {
	Acquire(ctx context.Context) (string, error)
}

// Client implements the driven.PagesSource port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a GitHub API client with the following transport stack:
//  1. installation token injection (a fresh token per request from tokens)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. httpcache (ETag-based conditional request caching)
//
// An empty baseURL selects DefaultBaseURL.
func NewClient(tokens TokenSource, baseURL string, timeout time.Duration) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	httpClient := &http.Client{
		Transport: &tokenTransport{tokens: tokens, base: rateLimitClient.Transport},
		Timeout:   timeout,
	}
	return NewClientWithHTTPClient(httpClient, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// Tests use it to point the client at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// GetPagesInfo returns the repository's Pages configuration, or nil, nil when
// the repository has no Pages site.
func (c *Client) GetPagesInfo(ctx context.Context, repoFullName string) (*model.PagesInfo, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	pages, resp, err := c.gh.Repositories.GetPagesInfo(ctx, owner, repo)
	logRateLimit(resp, "pages "+repoFullName)
	if isNotFound(resp) {
		return nil, nil
	}
	if err != nil {
		return nil, upstreamError(ctx, "get pages "+repoFullName, resp, err)
	}

	return &model.PagesInfo{
		HTMLURL:      pages.GetHTMLURL(),
		CNAME:        pages.GetCNAME(),
		Status:       pages.GetStatus(),
		SourceBranch: pages.GetSource().GetBranch(),
		SourcePath:   pages.GetSource().GetPath(),
	}, nil
}

// GetFileContent returns the decoded content of path at branch. found is
// false when the file, the branch or the repository does not exist, or when
// path names a directory.
func (c *Client) GetFileContent(ctx context.Context, repoFullName, path, branch string) (string, bool, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", false, err
	}

	opts := &gh.RepositoryContentGetOptions{Ref: branch}
	file, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	logRateLimit(resp, "contents "+repoFullName+"@"+branch)
	if isNotFound(resp) {
		return "", false, nil
	}
	if err != nil {
		return "", false, upstreamError(ctx, fmt.Sprintf("get %s@%s:%s", repoFullName, branch, path), resp, err)
	}
	if file == nil {
		return "", false, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decode %s@%s:%s: %w", repoFullName, branch, path, err)
	}
	return content, true, nil
}

// GetDefaultBranch returns the repository's default branch.
func (c *Client) GetDefaultBranch(ctx context.Context, repoFullName string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	logRateLimit(resp, "repo "+repoFullName)
	if err != nil {
		return "", upstreamError(ctx, "get repository "+repoFullName, resp, err)
	}
	return r.GetDefaultBranch(), nil
}

// tokenTransport sets the installation token on every outgoing request.
type tokenTransport struct {
	tokens TokenSource
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.Acquire(req.Context())
	if err != nil {
		return nil, fmt.Errorf("acquire installation token: %w", err)
	}

	clone := req.Clone(req.Context())
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return u, nil
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &model.ValidationError{Field: "repository", Reason: fmt.Sprintf("%q is not owner/repo", fullName)}
	}
	return parts[0], parts[1], nil
}
