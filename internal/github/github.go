// Package github fetches the public profile numbers shown on a card.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erinpentecost/pixelprofile/internal/logging"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://api.github.com"

	reposPerPage = 100
	// maxRepoPages caps star counting for accounts with huge repo lists.
	maxRepoPages = 10
)

var (
	ErrUserNotFound = errors.New("github: user not found")
	ErrRateLimited  = errors.New("github: rate limited")
	ErrBadUsername  = errors.New("github: invalid username")
)

// Stats are the numbers drawn on a card.
type Stats struct {
	Login       string
	Name        string
	AvatarURL   string
	PublicRepos int
	Followers   int
	TotalStars  int
	TotalPRs    int
	TotalIssues int
}

// DisplayName is the name if set, otherwise the login.
func (s *Stats) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.Login
}

type Fetcher interface {
	Fetch(ctx context.Context, username string) (*Stats, error)
}

// Client talks to the GitHub REST API.
type Client struct {
	BaseURL string
	Token   string
	// Timeout applies to each request when ctx has no deadline.
	Timeout time.Duration
	HTTP    *fasthttp.Client
}

var _ Fetcher = (*Client)(nil)

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Timeout: timeout,
		HTTP: &fasthttp.Client{
			Name:                "pixelprofile",
			MaxResponseBodySize: 8 << 20,
		},
	}
}

type userResponse struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

type repoResponse struct {
	Fork            bool `json:"fork"`
	StargazersCount int  `json:"stargazers_count"`
}

type searchResponse struct {
	TotalCount int `json:"total_count"`
}

// Fetch looks the user up, then counts stars, pull requests and issues
// concurrently.
func (c *Client) Fetch(ctx context.Context, username string) (*Stats, error) {
	if !validUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrBadUsername, username)
	}

	var user userResponse
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(username), nil, &user); err != nil {
		return nil, fmt.Errorf("fetch user %q: %w", username, err)
	}
	stats := &Stats{
		Login:       user.Login,
		Name:        user.Name,
		AvatarURL:   user.AvatarURL,
		PublicRepos: user.PublicRepos,
		Followers:   user.Followers,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stars, err := c.countStars(gctx, user.Login)
		if err != nil {
			return fmt.Errorf("count stars: %w", err)
		}
		stats.TotalStars = stars
		return nil
	})
	g.Go(func() error {
		n, err := c.searchCount(gctx, "author:"+user.Login+" type:pr")
		if err != nil {
			return fmt.Errorf("count pull requests: %w", err)
		}
		stats.TotalPRs = n
		return nil
	})
	g.Go(func() error {
		n, err := c.searchCount(gctx, "author:"+user.Login+" type:issue")
		if err != nil {
			return fmt.Errorf("count issues: %w", err)
		}
		stats.TotalIssues = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch stats for %q: %w", username, err)
	}

	logging.L().Debug("fetched stats", "login", stats.Login, "stars", stats.TotalStars)
	return stats, nil
}

// countStars sums stargazers over the user's own, non-fork repositories.
func (c *Client) countStars(ctx context.Context, login string) (int, error) {
	total := 0
	for page := 1; page <= maxRepoPages; page++ {
		q := url.Values{}
		q.Set("per_page", fmt.Sprint(reposPerPage))
		q.Set("page", fmt.Sprint(page))
		q.Set("type", "owner")

		var repos []repoResponse
		if err := c.getJSON(ctx, "/users/"+url.PathEscape(login)+"/repos", q, &repos); err != nil {
			return 0, err
		}
		for _, r := range repos {
			if !r.Fork {
				total += r.StargazersCount
			}
		}
		if len(repos) < reposPerPage {
			break
		}
	}
	return total, nil
}

func (c *Client) searchCount(ctx context.Context, query string) (int, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", "1")

	var res searchResponse
	if err := c.getJSON(ctx, "/search/issues", q, &res); err != nil {
		return 0, err
	}
	return res.TotalCount, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	uri := c.BaseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	if err := c.HTTP.DoDeadline(req, resp, deadline(ctx, c.Timeout)); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}

	switch code := resp.StatusCode(); code {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return ErrUserNotFound
	case fasthttp.StatusForbidden, fasthttp.StatusTooManyRequests:
		return fmt.Errorf("GET %s: %w", path, ErrRateLimited)
	default:
		return fmt.Errorf("GET %s: unexpected status %d", path, code)
	}

	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// deadline is the context deadline, or now+timeout when there is none.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return time.Now().Add(timeout)
}

// validUsername follows GitHub's rules: 1-39 alphanumerics or single
// hyphens, not starting or ending with a hyphen.
func validUsername(name string) bool {
	if len(name) == 0 || len(name) > 39 {
		return false
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-' && name[i-1] != '-':
		default:
			return false
		}
	}
	return true
}
