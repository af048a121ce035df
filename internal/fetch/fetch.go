// Package fetch performs all HTTP retrieval of catalogue indexes and item payloads.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/oauth2"

	"github.com/kennyg/folio/internal/artifact"
)

// DefaultTimeout bounds a single request when the caller passes zero
const DefaultTimeout = 30 * time.Second

// Client handles fetching artifacts from remote sources
type Client struct {
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithToken authenticates requests to the given hosts with a bearer token.
// Requests to any other host (including redirects) go out unauthenticated.
func WithToken(token string, hosts ...string) Option {
	return func(c *Client) {
		if token == "" {
			return
		}
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		allowed := make(map[string]bool, len(hosts))
		for _, h := range hosts {
			allowed[strings.ToLower(h)] = true
		}
		authed := &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
		hc := *c.http
		hc.Transport = &hostScopedTransport{hosts: allowed, authed: authed, base: base}
		c.http = &hc
	}
}

// NewClient creates a new fetch client
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type hostScopedTransport struct {
	hosts  map[string]bool
	authed http.RoundTripper
	base   http.RoundTripper
}

func (t *hostScopedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" && t.hosts[strings.ToLower(req.URL.Hostname())] {
		return t.authed.RoundTrip(req)
	}
	return t.base.RoundTrip(req)
}

// IndexResult is the outcome of FetchIndex
type IndexResult struct {
	Body        []byte
	Entry       *CachedIndex // record to persist; always non-nil on success
	NotModified bool
}

// FetchIndex retrieves the index document, revalidating against cached when
// it carries an ETag. On 304 the cached body is returned verbatim and only
// ValidatedAt moves; FetchedAt records when bytes last arrived.
func (c *Client) FetchIndex(ctx context.Context, key CacheKey, rawURL string, cached *CachedIndex, maxBytes int64, timeout time.Duration) (*IndexResult, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", RedactURL(rawURL), err)
	}
	req.Header.Set("Accept", "application/json")

	conditional := cached != nil && cached.Key == key.String() && cached.ETag != "" &&
		httpguts.ValidHeaderFieldValue(cached.ETag)
	if conditional {
		req.Header.Set("If-None-Match", cached.ETag)
	}

	c.logger.Debug("fetching index",
		zap.String("url", RedactURL(rawURL)),
		zap.Bool("conditional", conditional))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, requestError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	now := c.now()
	switch {
	case resp.StatusCode == http.StatusNotModified && conditional:
		entry := *cached
		entry.ValidatedAt = now
		c.logger.Debug("index not modified", zap.String("etag", cached.ETag))
		return &IndexResult{Body: cached.Body, Entry: &entry, NotModified: true}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, &artifact.FetchError{Status: resp.StatusCode, URL: RedactURL(rawURL)}
	}

	body, err := readLimited(ctx, resp, rawURL, maxBytes)
	if err != nil {
		return nil, err
	}

	entry := &CachedIndex{
		Key:         key.String(),
		ETag:        resp.Header.Get("ETag"),
		Body:        body,
		FetchedAt:   now,
		ValidatedAt: now,
	}
	c.logger.Debug("index fetched",
		zap.Int("bytes", len(body)),
		zap.String("etag", entry.ETag))
	return &IndexResult{Body: body, Entry: entry}, nil
}

// FetchItem retrieves one item payload. Items are never cached.
func (c *Client) FetchItem(ctx context.Context, rawURL string, maxBytes int64, timeout time.Duration) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", RedactURL(rawURL), err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, requestError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &artifact.FetchError{Status: resp.StatusCode, URL: RedactURL(rawURL)}
	}
	return readLimited(ctx, resp, rawURL, maxBytes)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// readLimited never buffers more than maxBytes+1 bytes
func readLimited(ctx context.Context, resp *http.Response, rawURL string, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %s declares %s, limit is %s", artifact.ErrPayloadTooLarge,
			RedactURL(rawURL), humanize.IBytes(uint64(resp.ContentLength)), humanize.IBytes(uint64(maxBytes)))
	}

	var r io.Reader = resp.Body
	if maxBytes > 0 {
		r = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, requestError(ctx, rawURL, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", artifact.ErrPayloadTooLarge,
			RedactURL(rawURL), humanize.IBytes(uint64(maxBytes)))
	}
	return body, nil
}

func requestError(ctx context.Context, rawURL string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", artifact.ErrFetchTimeout, RedactURL(rawURL))
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("fetching %s: %w", RedactURL(rawURL), context.Canceled)
	}
	// url.Error repeats the full URL; report only the cause
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return fmt.Errorf("%w: %s: %v", artifact.ErrFetchFailed, RedactURL(rawURL), err)
}

// RedactURL drops credentials, query and fragment so URLs are safe to log
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
