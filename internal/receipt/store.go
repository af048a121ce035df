// Package receipt persists the record of what folio installed into a
// workspace sandbox.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/sandbox"
)

const (
	lockFilename   = "receipt.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// SkipWrite can be returned by an Update callback to leave the file untouched
var SkipWrite = errors.New("skip receipt write")

// in-process lock per workspace root, held alongside the file lock.
// A one-slot channel so waiting can be cancelled.
var (
	rootLocksMu sync.Mutex
	rootLocks   = map[string]chan struct{}{}
)

func rootLock(root string) chan struct{} {
	rootLocksMu.Lock()
	defer rootLocksMu.Unlock()
	sem, ok := rootLocks[root]
	if !ok {
		sem = make(chan struct{}, 1)
		rootLocks[root] = sem
	}
	return sem
}

// Store reads and writes the receipt of one workspace
type Store struct {
	WorkspaceRoot string
	Logger        *zap.Logger
	Now           func() time.Time
}

// New creates a store for workspaceRoot
func New(workspaceRoot string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{WorkspaceRoot: workspaceRoot, Logger: logger, Now: time.Now}
}

func (s *Store) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Dir returns <root>/.github/.folio
func (s *Store) Dir() string {
	return filepath.Join(sandbox.Root(s.WorkspaceRoot), artifact.ReceiptDirName)
}

// Path returns the receipt file path
func (s *Store) Path() string {
	return filepath.Join(s.Dir(), artifact.ReceiptFilename)
}

// checkDir fails when .github or .github/.folio leads out of the workspace
// through a link.
func (s *Store) checkDir() error {
	d, err := sandbox.ResolveDestination(s.WorkspaceRoot, path.Join(artifact.ReceiptDirName, artifact.ReceiptFilename))
	if err == nil {
		err = sandbox.VerifyOnDisk(s.WorkspaceRoot, d)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrManifestWriteFailure, err)
	}
	return nil
}

// Read loads the receipt. It returns nil, nil when there is no workspace or
// nothing has been installed yet. A file that cannot be parsed yields an
// error matching ErrManifestReadFailure.
func (s *Store) Read() (*artifact.Receipt, error) {
	if s.WorkspaceRoot == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", artifact.ErrManifestReadFailure, err)
	}

	var r artifact.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", artifact.ErrManifestReadFailure, err)
	}
	if r.SchemaVersion != artifact.ReceiptSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d", artifact.ErrManifestReadFailure, r.SchemaVersion)
	}
	return &r, nil
}

// Write replaces the receipt file as a whole
func (s *Store) Write(r *artifact.Receipt) error {
	if s.WorkspaceRoot == "" {
		return fmt.Errorf("%w: %w", artifact.ErrManifestWriteFailure, artifact.ErrNoWorkspace)
	}
	if r.SchemaVersion == 0 {
		r.SchemaVersion = artifact.ReceiptSchemaVersion
	}
	if r.Entries == nil {
		r.Entries = []artifact.InstalledEntry{}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	data = append(data, '\n')

	if err := s.checkDir(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	tmp, err := os.CreateTemp(s.Dir(), ".receipt-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	return nil
}

// Lock takes the per-root lock, both in-process and on disk. The returned
// func releases it. The lock file stays behind in .github/.folio.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if s.WorkspaceRoot == "" {
		return nil, artifact.ErrNoWorkspace
	}
	sem := rootLock(filepath.Clean(s.WorkspaceRoot))
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("locking receipt: %w", ctx.Err())
	}
	release := func() { <-sem }

	if err := s.checkDir(); err != nil {
		release()
		return nil, err
	}
	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		release()
		return nil, fmt.Errorf("%w: %v", artifact.ErrManifestWriteFailure, err)
	}
	fl := flock.New(filepath.Join(s.Dir(), lockFilename))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		release()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("locking receipt: %w", err)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger().Warn("releasing receipt lock", zap.Error(err))
		}
		release()
	}, nil
}

// Update runs fn on the current receipt inside the per-root lock and writes
// the result. An unreadable receipt is logged and replaced with an empty one.
func (s *Store) Update(ctx context.Context, fn func(r *artifact.Receipt) error) error {
	unlock, err := s.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.UpdateLocked(fn)
}

// UpdateLocked is Update for callers already holding Lock
func (s *Store) UpdateLocked(fn func(r *artifact.Receipt) error) error {
	r, err := s.Read()
	if err != nil {
		s.logger().Warn("ignoring unreadable receipt", zap.String("path", s.Path()), zap.Error(err))
		r = nil
	}
	if r == nil {
		r = &artifact.Receipt{SchemaVersion: artifact.ReceiptSchemaVersion}
	}

	if err := fn(r); err != nil {
		if errors.Is(err, SkipWrite) {
			return nil
		}
		return err
	}
	r.UpdatedAt = s.now().UTC()
	return s.Write(r)
}

// Merge combines a previous entry list with newly installed entries. Entries
// are keyed by destination; new ones win. Surviving old entries keep their
// order and new entries follow.
func Merge(prev, entries []artifact.InstalledEntry) []artifact.InstalledEntry {
	fresh := make(map[string]bool, len(entries))
	for _, e := range entries {
		fresh[e.DestPath] = true
	}

	out := make([]artifact.InstalledEntry, 0, len(prev)+len(entries))
	for _, e := range prev {
		if !fresh[e.DestPath] {
			out = append(out, e)
		}
	}
	// a batch never repeats a destination, but keep the last one if it does
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := seen[e.DestPath]; ok {
			out[i] = e
			continue
		}
		seen[e.DestPath] = len(out)
		out = append(out, e)
	}
	return out
}

// Refusal is a receipt entry dropped without deleting its file, because the
// file is not (or no longer) inside the sandbox.
type Refusal struct {
	Entry artifact.InstalledEntry
	Err   error
}

// Removal is the outcome of Remove
type Removal struct {
	Removed []artifact.InstalledEntry
	Refused []Refusal
}

// Remove deletes the files installed for ids and drops their entries.
// Files that were already deleted by hand count as removed. Entries pointing
// outside the sandbox are dropped from the receipt but their files are left
// alone and reported in Refused. Entries whose file could not be deleted stay
// in the receipt and fail the call.
func (s *Store) Remove(ctx context.Context, ids []string) (*Removal, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	res := &Removal{}
	var errs []error
	err := s.Update(ctx, func(r *artifact.Receipt) error {
		kept := r.Entries[:0]
		dropped := 0
		for _, e := range r.Entries {
			if !want[e.ID] {
				kept = append(kept, e)
				continue
			}
			err := s.removeFile(e)
			switch {
			case errors.Is(err, artifact.ErrPathTraversal):
				res.Refused = append(res.Refused, Refusal{Entry: e, Err: err})
			case err != nil:
				errs = append(errs, err)
				kept = append(kept, e)
				continue
			default:
				res.Removed = append(res.Removed, e)
			}
			dropped++
		}
		r.Entries = kept
		if dropped == 0 {
			return SkipWrite
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

func (s *Store) removeFile(e artifact.InstalledEntry) error {
	d, err := sandbox.FromRel(s.WorkspaceRoot, e.DestPath)
	if err != nil {
		s.logger().Warn("receipt entry outside sandbox, not deleting",
			zap.String("item", e.ID), zap.String("dest", e.DestPath), zap.Error(err))
		return err
	}
	if err := sandbox.VerifyOnDisk(s.WorkspaceRoot, d); err != nil {
		s.logger().Warn("not deleting through escaping link",
			zap.String("item", e.ID), zap.String("dest", e.DestPath), zap.Error(err))
		return err
	}
	if err := os.Remove(d.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", e.DestPath, err)
	}
	s.logger().Debug("removed", zap.String("item", e.ID), zap.String("dest", e.DestPath))
	return nil
}
