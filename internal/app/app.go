// Package app wires configuration, fetching, parsing and installing together
// for the CLI. Commands stay thin; everything here is testable without cobra.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/catalog"
	"github.com/kennyg/folio/internal/config"
	"github.com/kennyg/folio/internal/fetch"
	"github.com/kennyg/folio/internal/ghclient"
	"github.com/kennyg/folio/internal/install"
	"github.com/kennyg/folio/internal/receipt"
	"github.com/kennyg/folio/internal/source"
)

// rawHost serves public GitHub file contents
const rawHost = "raw.githubusercontent.com"

// ErrNoCachedIndex is returned by CachedIndex before the first refresh
var ErrNoCachedIndex = errors.New("no cached index; run folio refresh")

// Prober looks up the catalogue repository through the GitHub API
type Prober interface {
	ProbeRepo(ctx context.Context, owner, repo, ref string) (*ghclient.ProbeResult, error)
}

// App holds everything a command needs
type App struct {
	Config   *config.Config
	Paths    *config.Paths
	Repo     source.Repo
	Logger   *zap.Logger
	Fetcher  *fetch.Client
	Cache    *fetch.CacheStore
	Receipts *receipt.Store

	token  string
	prober Prober
	now    func() time.Time
}

// Option configures New
type Option func(*options)

type options struct {
	httpClient *http.Client
	token      *string
	prober     Prober
	cache      *fetch.CacheStore
	now        func() time.Time
}

// WithHTTPClient replaces the HTTP client used for index and item downloads
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithToken skips token discovery
func WithToken(token string) Option {
	return func(o *options) { o.token = &token }
}

// WithProber replaces the GitHub API client used by Doctor
func WithProber(p Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithCache replaces the on-disk index cache
func WithCache(c *fetch.CacheStore) Option {
	return func(o *options) { o.cache = c }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and builds the collaborators. The allowlist is enforced
// here, so no command can reach the network for a repository outside it.
func New(cfg *config.Config, paths *config.Paths, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	repo, err := cfg.Repo()
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var token string
	if o.token != nil {
		token = *o.token
	} else {
		token = ghclient.ResolveToken(repo.Host)
	}

	now := o.now
	if now == nil {
		now = time.Now
	}

	fetchOpts := []fetch.Option{fetch.WithLogger(logger.Named("fetch")), fetch.WithClock(now)}
	if o.httpClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(o.httpClient))
	}
	fetchOpts = append(fetchOpts, fetch.WithToken(token, rawHost, repo.Host))

	cache := o.cache
	if cache == nil {
		cache, err = fetch.NewCacheStore(paths.CacheDir)
		if err != nil {
			return nil, err
		}
	}

	prober := o.prober
	if prober == nil {
		prober = ghclient.NewForHost(repo.Host, token)
	}

	return &App{
		Config:   cfg,
		Paths:    paths,
		Repo:     repo,
		Logger:   logger,
		Fetcher:  fetch.NewClient(fetchOpts...),
		Cache:    cache,
		Receipts: receipt.New(paths.WorkspaceRoot, logger.Named("receipt")),
		token:    token,
		prober:   prober,
		now:      now,
	}, nil
}

// Authenticated reports whether a GitHub token was found
func (a *App) Authenticated() bool { return a.token != "" }

func (a *App) cacheKey() fetch.CacheKey {
	return fetch.CacheKey{Repo: a.Repo.String(), Ref: a.Config.Ref, IndexPath: a.Config.IndexPath}
}

// IndexURL is where the index document is fetched from
func (a *App) IndexURL() string {
	return a.Repo.RawURL(a.Config.Ref, a.Config.IndexPath)
}

// Index is a parsed catalogue plus where it came from
type Index struct {
	Doc         *artifact.IndexDocument
	NotModified bool
	FromCache   bool
	Bytes       int
	FetchedAt   time.Time
	ValidatedAt time.Time
}

// RefreshIndex fetches the index (conditionally when cached), validates it,
// and only then stores it in the cache. An invalid document never replaces
// a good cached one.
func (a *App) RefreshIndex(ctx context.Context) (*Index, error) {
	key := a.cacheKey()
	cached, err := a.Cache.Get(key)
	if err != nil {
		a.Logger.Warn("ignoring unreadable index cache", zap.Error(err))
		cached = nil
	}

	res, err := a.Fetcher.FetchIndex(ctx, key, a.IndexURL(), cached, a.Config.MaxIndexBytes, time.Duration(a.Config.Timeout))
	if err != nil {
		return nil, err
	}

	doc, err := catalog.Parse(res.Body, a.Config.MaxIndexBytes)
	if err != nil {
		return nil, err
	}
	a.checkSource(doc)

	if err := a.Cache.Put(res.Entry); err != nil {
		a.Logger.Warn("index cache not saved", zap.Error(err))
	}

	return &Index{
		Doc:         doc,
		NotModified: res.NotModified,
		Bytes:       len(res.Body),
		FetchedAt:   res.Entry.FetchedAt,
		ValidatedAt: res.Entry.ValidatedAt,
	}, nil
}

// CachedIndex parses the last stored index without touching the network
func (a *App) CachedIndex() (*Index, error) {
	cached, err := a.Cache.Get(a.cacheKey())
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, ErrNoCachedIndex
	}
	doc, err := catalog.Parse(cached.Body, a.Config.MaxIndexBytes)
	if err != nil {
		return nil, err
	}
	return &Index{
		Doc:         doc,
		FromCache:   true,
		Bytes:       len(cached.Body),
		FetchedAt:   cached.FetchedAt,
		ValidatedAt: cached.ValidatedAt,
	}, nil
}

// LoadIndex returns the cached index when offline, otherwise refreshes
func (a *App) LoadIndex(ctx context.Context, offline bool) (*Index, error) {
	if offline {
		return a.CachedIndex()
	}
	return a.RefreshIndex(ctx)
}

func (a *App) checkSource(doc *artifact.IndexDocument) {
	declared, err := source.ParseRepo(doc.Source.Repo)
	if err != nil || declared.String() != a.Repo.String() {
		a.Logger.Warn("index describes a different repository",
			zap.String("configured", a.Repo.String()),
			zap.String("declared", doc.Source.Repo))
	}
}

// InstallOptions are the per-invocation install choices
type InstallOptions struct {
	Resolver install.Resolver
	// Trust is the --trust flag; trustedWorkspaces in the user config also counts
	Trust bool
}

// InstallItems installs the selected items into the workspace sandbox
func (a *App) InstallItems(ctx context.Context, items []artifact.CatalogItem, opts InstallOptions) (*install.Report, error) {
	installer := install.New(install.Options{
		WorkspaceRoot: a.Paths.WorkspaceRoot,
		Repo:          a.Repo.String(),
		Ref:           a.Config.Ref,
		MaxItemBytes:  a.Config.MaxItemBytes,
		MaxConcurrent: a.Config.MaxConcurrentDownloads,
		Timeout:       time.Duration(a.Config.Timeout),
		Fetcher:       a.Fetcher,
		Resolver:      opts.Resolver,
		Receipts:      a.Receipts,
		Trust:         a.Config.TrustGate(opts.Trust),
		URLFor: func(p string) string {
			return a.Repo.RawURL(a.Config.Ref, p)
		},
		Logger: a.Logger.Named("install"),
		Now:    a.now,
	})
	return installer.Install(ctx, items)
}

// ReadManifest returns the workspace receipt, or nil when there is no
// workspace or nothing has been installed yet. An unreadable receipt is an
// error matching ErrManifestReadFailure.
func (a *App) ReadManifest() (*artifact.Receipt, error) {
	if a.Paths.WorkspaceRoot == "" {
		return nil, nil
	}
	return a.Receipts.Read()
}

// RemoveItems deletes installed files for ids and drops their receipt entries
func (a *App) RemoveItems(ctx context.Context, ids []string) (*receipt.Removal, error) {
	if a.Paths.WorkspaceRoot == "" {
		return nil, artifact.ErrNoWorkspace
	}
	return a.Receipts.Remove(ctx, ids)
}

// SelectItems resolves ids and filters against doc. Unknown ids are an error.
func SelectItems(doc *artifact.IndexDocument, f catalog.Filter) ([]artifact.CatalogItem, error) {
	if missing := catalog.MissingIDs(doc, f.IDs); len(missing) > 0 {
		return nil, fmt.Errorf("not in the catalogue: %v", missing)
	}
	return catalog.Select(doc, f), nil
}
