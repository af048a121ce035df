// Package install places catalogue items into a workspace sandbox.
//
// An install runs in three phases. Planning maps every item to its
// destination and rejects the whole batch on a traversal attempt. Fetching
// downloads payloads in parallel into memory. Committing then walks the items
// in order under the receipt lock: conflict handling, integrity check, atomic
// write. The lock is only taken once an item reaches that step, so a batch
// where every download failed leaves the workspace untouched. The receipt is
// updated once at the end.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/integrity"
	"github.com/kennyg/folio/internal/receipt"
	"github.com/kennyg/folio/internal/sandbox"
)

const (
	// MaxRenameProbes bounds the search for a free .copy-<n> name
	MaxRenameProbes = 1000

	DefaultMaxConcurrent = 4
	DefaultMaxItemBytes  = 256 << 10
)

// Fetcher downloads one item payload
type Fetcher interface {
	FetchItem(ctx context.Context, rawURL string, maxBytes int64, timeout time.Duration) ([]byte, error)
}

// Options configures an Installer
type Options struct {
	WorkspaceRoot string
	Repo          string
	Ref           string
	MaxItemBytes  int64
	MaxConcurrent int
	Timeout       time.Duration

	Fetcher  Fetcher
	Resolver Resolver
	Receipts *receipt.Store
	// Trust reports whether the workspace may be written to. Nil means no.
	Trust  func(workspaceRoot string) bool
	URLFor func(sourcePath string) string
	Logger *zap.Logger
	Now    func() time.Time
}

// Installer runs install batches
type Installer struct {
	opts Options
	log  *zap.Logger
}

// New creates an Installer, filling defaults for zero options
func New(opts Options) *Installer {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxItemBytes <= 0 {
		opts.MaxItemBytes = DefaultMaxItemBytes
	}
	if opts.Resolver == nil {
		opts.Resolver = FixedResolver(DecisionSkip)
	}
	if opts.Receipts == nil {
		opts.Receipts = receipt.New(opts.WorkspaceRoot, opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Installer{opts: opts, log: opts.Logger}
}

// Skip records an item left alone because of a conflict decision
type Skip struct {
	ItemID string
	Dest   string
}

// ItemError is the failure of a single item. Other items are unaffected.
type ItemError struct {
	ItemID string
	Dest   string
	Err    error
}

func (e *ItemError) Error() string {
	if e.Dest != "" {
		return fmt.Sprintf("%s (%s): %v", e.ItemID, e.Dest, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Report is the outcome of one batch
type Report struct {
	Batch     string
	Installed []artifact.InstalledEntry
	Skipped   []Skip
	Failed    []ItemError
}

// Err joins the per-item failures, or returns nil
func (r *Report) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i := range r.Failed {
		errs[i] = &r.Failed[i]
	}
	return errors.Join(errs...)
}

type planned struct {
	item artifact.CatalogItem
	dest sandbox.Destination
	body []byte
	err  error
}

// Install places items into the sandbox. The returned error is reserved for
// batch-level failures (no workspace, untrusted, traversal, cancellation,
// receipt write); per-item failures are in the report.
func (in *Installer) Install(ctx context.Context, items []artifact.CatalogItem) (*Report, error) {
	o := in.opts
	report := &Report{Batch: uuid.NewString()}
	log := in.log.With(zap.String("batch", report.Batch))

	if err := checkWorkspace(o.WorkspaceRoot); err != nil {
		return report, err
	}
	if o.Trust == nil || !o.Trust(o.WorkspaceRoot) {
		return report, artifact.ErrUntrustedWorkspace
	}

	plan, err := in.plan(items)
	if err != nil {
		return report, err
	}

	in.fetch(ctx, plan)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	var unlock func()
	defer func() {
		if unlock != nil {
			unlock()
		}
	}()

	occupied := make(map[string]bool, len(plan))
	for _, p := range plan {
		if p.err == nil {
			occupied[p.dest.Rel()] = true
		}
	}

	for i := range plan {
		p := &plan[i]
		if p.err == nil {
			if err := ctx.Err(); err != nil {
				p.err = err
			}
		}
		if p.err != nil {
			report.Failed = append(report.Failed, ItemError{ItemID: p.item.ID, Dest: p.dest.Rel(), Err: p.err})
			log.Warn("item failed", zap.String("item", p.item.ID), zap.Error(p.err))
			continue
		}

		if unlock == nil {
			if unlock, err = o.Receipts.Lock(ctx); err != nil {
				log.Error("receipt lock not taken", zap.String("path", o.Receipts.Path()), zap.Error(err))
				return report, err
			}
		}

		entry, skipped, err := in.commit(ctx, p, occupied)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, ItemError{ItemID: p.item.ID, Dest: p.dest.Rel(), Err: err})
			log.Warn("item failed", zap.String("item", p.item.ID), zap.Error(err))
		case skipped:
			report.Skipped = append(report.Skipped, Skip{ItemID: p.item.ID, Dest: p.dest.Rel()})
			log.Info("item skipped", zap.String("item", p.item.ID), zap.String("dest", p.dest.Rel()))
		default:
			report.Installed = append(report.Installed, entry)
			log.Info("item installed", zap.String("item", p.item.ID), zap.String("dest", entry.DestPath))
		}
	}

	if unlock == nil {
		return report, ctx.Err()
	}

	err = o.Receipts.UpdateLocked(func(r *artifact.Receipt) error {
		if len(report.Installed) == 0 {
			return receipt.SkipWrite
		}
		r.Repo, r.Ref = o.Repo, o.Ref
		r.Entries = receipt.Merge(r.Entries, report.Installed)
		return nil
	})
	if err != nil {
		log.Error("receipt not saved", zap.String("path", o.Receipts.Path()), zap.Error(err))
		return report, err
	}
	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

func checkWorkspace(root string) error {
	if root == "" {
		return artifact.ErrNoWorkspace
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", artifact.ErrNoWorkspace, root)
	}
	return nil
}

// plan validates every source path before anything else happens. A
// traversal attempt fails the whole batch; mapping problems fail one item.
func (in *Installer) plan(items []artifact.CatalogItem) ([]planned, error) {
	plan := make([]planned, len(items))
	for i, item := range items {
		if err := sandbox.AssertSafeSource(item.Path); err != nil {
			return nil, fmt.Errorf("item %q: %w", item.ID, err)
		}
		plan[i].item = item
	}
	for i := range plan {
		dest, err := sandbox.Map(in.opts.WorkspaceRoot, plan[i].item)
		if err != nil {
			if errors.Is(err, artifact.ErrPathTraversal) {
				return nil, fmt.Errorf("item %q: %w", plan[i].item.ID, err)
			}
			plan[i].err = err
			continue
		}
		plan[i].dest = dest
	}
	return plan, nil
}

// fetch downloads payloads for planned items. Failures stay with their item.
func (in *Installer) fetch(ctx context.Context, plan []planned) {
	o := in.opts
	var g errgroup.Group
	g.SetLimit(o.MaxConcurrent)

	for i := range plan {
		p := &plan[i]
		if p.err != nil {
			continue
		}
		g.Go(func() error {
			url := p.item.Path
			if o.URLFor != nil {
				url = o.URLFor(p.item.Path)
			}
			body, err := o.Fetcher.FetchItem(ctx, url, o.MaxItemBytes, o.Timeout)
			if err != nil {
				p.err = err
				return nil
			}
			p.body = body
			return nil
		})
	}
	_ = g.Wait()
}

// commit resolves conflicts, verifies and writes one item. The caller holds
// the receipt lock.
func (in *Installer) commit(ctx context.Context, p *planned, occupied map[string]bool) (artifact.InstalledEntry, bool, error) {
	o := in.opts
	dest := p.dest

	exists, err := sandbox.Exists(dest)
	if err != nil {
		return artifact.InstalledEntry{}, false, err
	}
	if exists {
		decision, err := o.Resolver.Resolve(ctx, dest.Rel())
		if err != nil {
			in.log.Warn("conflict resolver failed, skipping",
				zap.String("item", p.item.ID), zap.String("dest", dest.Rel()), zap.Error(err))
			decision = DecisionSkip
		}
		switch decision {
		case DecisionOverwrite:
		case DecisionRename:
			dest, err = in.freeCopyName(dest, p.item.Kind, occupied)
			if err != nil {
				return artifact.InstalledEntry{}, false, err
			}
			p.dest = dest
		default:
			return artifact.InstalledEntry{}, true, nil
		}
	}

	if err := integrity.Verify(p.body, p.item.SHA256); err != nil {
		return artifact.InstalledEntry{}, false, err
	}
	if err := sandbox.VerifyOnDisk(o.WorkspaceRoot, dest); err != nil {
		return artifact.InstalledEntry{}, false, err
	}
	if err := writeAtomic(ctx, dest.Path(), p.body); err != nil {
		return artifact.InstalledEntry{}, false, err
	}
	occupied[dest.Rel()] = true

	return artifact.InstalledEntry{
		ID:          p.item.ID,
		Kind:        p.item.Kind,
		Version:     p.item.Version,
		SourcePath:  p.item.Path,
		DestPath:    dest.Rel(),
		SHA256:      integrity.Digest(p.body),
		InstalledAt: o.Now().UTC(),
	}, false, nil
}

func (in *Installer) freeCopyName(dest sandbox.Destination, kind artifact.Kind, occupied map[string]bool) (sandbox.Destination, error) {
	placement, _ := artifact.PlacementFor(kind)
	for n := 1; n <= MaxRenameProbes; n++ {
		candidate, err := sandbox.CopyName(in.opts.WorkspaceRoot, dest, placement.Suffix, n)
		if err != nil {
			return sandbox.Destination{}, err
		}
		if occupied[candidate.Rel()] {
			continue
		}
		exists, err := sandbox.Exists(candidate)
		if err != nil {
			return sandbox.Destination{}, err
		}
		if !exists {
			return candidate, nil
		}
	}
	return sandbox.Destination{}, fmt.Errorf("%w: tried %d names next to %s", artifact.ErrRenameExhausted, MaxRenameProbes, dest.Rel())
}
