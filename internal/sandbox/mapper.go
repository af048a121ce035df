package sandbox

import (
	"fmt"
	"path"
	"strings"

	"github.com/kennyg/folio/internal/artifact"
)

// Map computes the single allowed destination for an item. It depends only
// on the item's kind and source path.
func Map(workspaceRoot string, item artifact.CatalogItem) (Destination, error) {
	placement, ok := artifact.PlacementFor(item.Kind)
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q", artifact.ErrUnsupportedKind, item.Kind)
	}

	src, err := normalize(item.Path)
	if err != nil {
		return Destination{}, err
	}
	base := path.Base(src)
	if !strings.HasSuffix(base, placement.Suffix) || len(base) == len(placement.Suffix) {
		return Destination{}, fmt.Errorf("%w: %s item %q must be a *%s file, got %q",
			artifact.ErrInvalidItemShape, item.Kind, item.ID, placement.Suffix, base)
	}

	rel := placement.FixedFile
	if rel == "" {
		rel = path.Join(placement.Dir, base)
	}
	return ResolveDestination(workspaceRoot, rel)
}

// CopyName returns the n-th rename candidate for d: "<stem>.copy-<n><suffix>",
// where suffix is the kind suffix (so foo.prompt.md becomes foo.copy-1.prompt.md).
func CopyName(workspaceRoot string, d Destination, suffix string, n int) (Destination, error) {
	dir, base := path.Split(d.rel)
	if suffix == "" || !strings.HasSuffix(base, suffix) {
		suffix = path.Ext(base)
	}
	stem := strings.TrimSuffix(base, suffix)
	name := fmt.Sprintf("%s.copy-%d%s", stem, n, suffix)

	inner := strings.TrimPrefix(path.Join(dir, name), artifact.SandboxDirName+"/")
	return ResolveDestination(workspaceRoot, inner)
}
