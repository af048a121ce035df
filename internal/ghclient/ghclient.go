// Package ghclient provides a GitHub API client using go-github
package ghclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/go-github/v67/github"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

// Client wraps the go-github client
type Client struct {
	gh            *github.Client
	authenticated bool
}

// New creates a client for github.com. An empty token means unauthenticated
// access (60 req/hr).
func New(token string) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &Client{
		gh:            github.NewClient(httpClient),
		authenticated: token != "",
	}
}

// NewForHost creates a client for a specific host (GitHub Enterprise)
func NewForHost(host, token string) *Client {
	c := New(token)

	if host != "" && host != "github.com" && host != "api.github.com" {
		c.gh.BaseURL, _ = url.Parse(fmt.Sprintf("https://%s/api/v3/", host))
		c.gh.UploadURL, _ = url.Parse(fmt.Sprintf("https://%s/api/uploads/", host))
	}

	return c
}

// withBaseURL points the client at a test server
func (c *Client) withBaseURL(raw string) *Client {
	u, _ := url.Parse(strings.TrimSuffix(raw, "/") + "/")
	c.gh.BaseURL = u
	return c
}

// IsAuthenticated returns true if the client has a token
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

// ProbeResult summarizes what the API knows about a catalogue repository
type ProbeResult struct {
	FullName      string
	Private       bool
	DefaultBranch string
	RefSHA        string // empty when the ref does not resolve
}

// ErrRepoNotFound is returned when the API reports 404 for the repository.
// For private repos this is also what an unauthenticated caller sees.
var ErrRepoNotFound = errors.New("repository not found or not visible")

// ProbeRepo looks up a repository and resolves ref to a commit.
// A ref that does not resolve is not an error; RefSHA is left empty.
func (c *Client) ProbeRepo(ctx context.Context, owner, repo, ref string) (*ProbeResult, error) {
	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s/%s", ErrRepoNotFound, owner, repo)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	res := &ProbeResult{
		FullName:      r.GetFullName(),
		Private:       r.GetPrivate(),
		DefaultBranch: r.GetDefaultBranch(),
	}
	if ref == "" {
		ref = res.DefaultBranch
	}

	sha, resp, err := c.gh.Repositories.GetCommitSHA1(ctx, owner, repo, ref, "")
	switch {
	case err == nil:
		res.RefSHA = sha
	case resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity):
	default:
		return nil, fmt.Errorf("failed to resolve ref %q: %w", ref, err)
	}

	return res, nil
}

// ResolveToken finds a GitHub token for host.
// Resolution order: GITHUB_TOKEN, GH_TOKEN, gh CLI hosts.yml, none.
func ResolveToken(host string) string {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token
	}
	if token := os.Getenv("GH_TOKEN"); token != "" {
		return token
	}
	return readGhToken(ghHostsPath(), host)
}

// ghHostsConfig represents the gh CLI hosts.yml config
type ghHostsConfig map[string]struct {
	OAuthToken string `yaml:"oauth_token"`
}

func ghHostsPath() string {
	if dir := os.Getenv("GH_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "hosts.yml")
	}
	return filepath.Join(xdg.ConfigHome, "gh", "hosts.yml")
}

// readGhToken reads the token for host from a gh CLI hosts.yml
func readGhToken(path, host string) string {
	if host == "" {
		host = "github.com"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var hosts ghHostsConfig
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return ""
	}
	return hosts[host].OAuthToken
}
