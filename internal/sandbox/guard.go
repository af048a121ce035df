// Package sandbox confines every install to the workspace's sandbox directory.
//
// Destinations are only ever built by Map or ResolveDestination, so holding a
// Destination means the path was checked against the sandbox root.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kennyg/folio/internal/artifact"
)

// Destination is an absolute path known to resolve inside the sandbox root
type Destination struct {
	abs string
	rel string // slash-separated, relative to the workspace root
}

// Path returns the absolute filesystem path
func (d Destination) Path() string { return d.abs }

// Rel returns the slash-separated path relative to the workspace root
func (d Destination) Rel() string { return d.rel }

func (d Destination) String() string { return d.rel }

// Root returns the sandbox root for a workspace
func Root(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, artifact.SandboxDirName)
}

// normalize decodes percent-encoding and folds backslashes so traversal
// checks see the same path the filesystem would.
func normalize(p string) (string, error) {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return "", fmt.Errorf("%w: undecodable path %q", artifact.ErrPathTraversal, p)
	}
	return strings.ReplaceAll(decoded, `\`, "/"), nil
}

func isAbs(p string) bool {
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return true
	}
	// Windows volume names are absolute regardless of host OS
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func hasParentSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// AssertSafeSource rejects a repository-relative source path that is
// absolute or walks out of the repository.
func AssertSafeSource(p string) error {
	n, err := normalize(p)
	if err != nil {
		return err
	}
	if strings.TrimSpace(n) == "" {
		return fmt.Errorf("%w: empty source path", artifact.ErrPathTraversal)
	}
	if isAbs(n) {
		return fmt.Errorf("%w: absolute source path %q", artifact.ErrPathTraversal, p)
	}
	cleaned := path.Clean(n)
	if hasParentSegment(n) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("%w: source path %q contains a parent segment", artifact.ErrPathTraversal, p)
	}
	return nil
}

// ResolveDestination joins rel onto the sandbox root of workspaceRoot and
// fails if the result would land outside it.
func ResolveDestination(workspaceRoot, rel string) (Destination, error) {
	if workspaceRoot == "" {
		return Destination{}, artifact.ErrNoWorkspace
	}
	n, err := normalize(rel)
	if err != nil {
		return Destination{}, err
	}
	if isAbs(n) {
		return Destination{}, fmt.Errorf("%w: absolute destination %q", artifact.ErrPathTraversal, rel)
	}

	root := Root(workspaceRoot)
	abs := filepath.Join(root, filepath.FromSlash(n))
	inner, err := filepath.Rel(root, abs)
	if err != nil || inner == "." || !within(root, abs) {
		return Destination{}, fmt.Errorf("%w: destination %q resolves outside %s", artifact.ErrPathTraversal, rel, artifact.SandboxDirName)
	}

	return Destination{
		abs: abs,
		rel: path.Join(artifact.SandboxDirName, filepath.ToSlash(inner)),
	}, nil
}

// VerifyOnDisk resolves symlinks on the deepest existing ancestor of d and
// fails if that ancestor, or the sandbox root itself, lives outside the
// resolved workspace.
func VerifyOnDisk(workspaceRoot string, d Destination) error {
	root, err := filepath.EvalSymlinks(workspaceRoot)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}
	sandboxRoot := filepath.Join(root, artifact.SandboxDirName)
	if resolved, err := filepath.EvalSymlinks(sandboxRoot); err == nil {
		if !within(root, resolved) {
			return fmt.Errorf("%w: %s resolves to %s", artifact.ErrPathTraversal, artifact.SandboxDirName, resolved)
		}
		sandboxRoot = resolved
	}

	stop := filepath.Clean(workspaceRoot)
	for probe := filepath.Dir(d.abs); ; probe = filepath.Dir(probe) {
		if probe == stop {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(probe)
		if err == nil {
			if !within(sandboxRoot, resolved) {
				return fmt.Errorf("%w: %s resolves to %s", artifact.ErrPathTraversal, d.rel, resolved)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("resolving %s: %w", probe, err)
		}
		if filepath.Dir(probe) == probe {
			return nil
		}
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Exists reports whether something (file, dir or link) is at d
func Exists(d Destination) (bool, error) {
	_, err := os.Lstat(d.abs)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FromRel rebuilds a Destination from a workspace-relative path as stored in
// the receipt. Paths outside the sandbox directory are rejected.
func FromRel(workspaceRoot, workspaceRel string) (Destination, error) {
	n, err := normalize(workspaceRel)
	if err != nil {
		return Destination{}, err
	}
	inner, ok := strings.CutPrefix(path.Clean(n), artifact.SandboxDirName+"/")
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q is not under %s", artifact.ErrPathTraversal, workspaceRel, artifact.SandboxDirName)
	}
	return ResolveDestination(workspaceRoot, inner)
}
