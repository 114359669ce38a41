package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/devlog-hq/devlog/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var repoURLRe = regexp.MustCompile(`^https?://github\.com/([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)

// Commit is one row of a repository's history as shown next to entries.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// StatusError is returned for any non-200 answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client is a minimal GitHub REST client for commit history.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient creates a Client with OpenTelemetry instrumentation
func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.GitHub.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.GitHub.BaseURL, "/"),
		Token:   cfg.GitHub.Token,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger: log,
	}
}

// ParseRepoURL extracts owner and repository name from a GitHub URL.
func ParseRepoURL(raw string) (owner, name string, err error) {
	m := repoURLRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", fmt.Errorf("not a github repository url: %q", raw)
	}
	return m[1], m[2], nil
}

type apiCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
}

// ListCommits returns one page of the default branch history, newest first.
func (c *Client) ListCommits(ctx context.Context, repoURL string, page, perPage int) ([]Commit, error) {
	owner, name, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits", c.BaseURL, url.PathEscape(owner), url.PathEscape(name))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q := httpReq.URL.Query()
	q.Add("page", strconv.Itoa(page))
	q.Add("per_page", strconv.Itoa(perPage))
	httpReq.URL.RawQuery = q.Encode()
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Warn("list_commits request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("repo", owner+"/"+name))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var raw []apiCommit
	if err := sonic.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	out := make([]Commit, 0, len(raw))
	for _, rc := range raw {
		author := rc.Commit.Author.Name
		if rc.Author != nil && rc.Author.Login != "" {
			author = rc.Author.Login
		}
		sha := rc.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		msg, _, _ := strings.Cut(rc.Commit.Message, "\n")
		out = append(out, Commit{
			SHA:     sha,
			Message: strings.TrimSpace(msg),
			Author:  author,
			Date:    rc.Commit.Author.Date.UTC(),
			URL:     rc.HTMLURL,
		})
	}
	return out, nil
}
