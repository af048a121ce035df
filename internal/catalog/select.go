package catalog

import (
	"slices"
	"strings"

	"github.com/kennyg/folio/internal/artifact"
)

// Filter narrows an index to the items a user asked for.
// Empty fields match everything; all non-empty fields must match.
type Filter struct {
	IDs   []string
	Kinds []artifact.Kind
	Tags  []string // matches tags or teamTags
	Query string   // case-insensitive substring of id, name or description
}

// IsZero reports whether the filter selects every item
func (f Filter) IsZero() bool {
	return len(f.IDs) == 0 && len(f.Kinds) == 0 && len(f.Tags) == 0 && strings.TrimSpace(f.Query) == ""
}

// Select returns the matching items in index order
func Select(doc *artifact.IndexDocument, f Filter) []artifact.CatalogItem {
	if doc == nil {
		return nil
	}
	var out []artifact.CatalogItem
	for _, item := range doc.Items {
		if f.matches(item) {
			out = append(out, item)
		}
	}
	return out
}

// MissingIDs returns the requested ids that are not in the index
func MissingIDs(doc *artifact.IndexDocument, ids []string) []string {
	known := make(map[string]bool)
	if doc != nil {
		for _, item := range doc.Items {
			known[item.ID] = true
		}
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func (f Filter) matches(item artifact.CatalogItem) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, item.ID) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, item.Kind) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool {
		return slices.Contains(item.Tags, t) || slices.Contains(item.TeamTags, t)
	}) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hay := strings.ToLower(item.ID + "\n" + item.Name + "\n" + item.Description)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}
