// Package catalog parses and validates the remote index document.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/kennyg/folio/internal/artifact"
)

// DefaultMaxBytes is the index size ceiling when none is configured
const DefaultMaxBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func itemValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json names in errors
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("artifactkind", func(fl validator.FieldLevel) bool {
			return artifact.Kind(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// rawIndex defers decoding of the parts validated step by step
type rawIndex struct {
	SchemaVersion json.RawMessage `json:"schemaVersion"`
	Source        json.RawMessage `json:"source"`
	GeneratedAt   json.RawMessage `json:"generatedAt"`
	Items         json.RawMessage `json:"items"`
}

// Parse validates raw as an index document. Checks run in a fixed order so
// the first failing rule determines the error: size, JSON structure,
// schema version, source, items list, then each item.
func Parse(raw []byte, maxBytes int64) (*artifact.IndexDocument, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("%w: index is %s, limit is %s", artifact.ErrPayloadTooLarge,
			humanize.IBytes(uint64(len(raw))), humanize.IBytes(uint64(maxBytes)))
	}

	var ri rawIndex
	if err := json.Unmarshal(raw, &ri); err != nil {
		return nil, fmt.Errorf("%w: %v", artifact.ErrMalformedIndex, err)
	}

	var version int
	if isNull(ri.SchemaVersion) || json.Unmarshal(ri.SchemaVersion, &version) != nil || version != artifact.IndexSchemaVersion {
		got := "missing"
		if !isNull(ri.SchemaVersion) {
			got = string(bytes.TrimSpace(ri.SchemaVersion))
		}
		return nil, fmt.Errorf("%w: got %s, want %d", artifact.ErrUnsupportedSchema, got, artifact.IndexSchemaVersion)
	}

	var src artifact.IndexSource
	if isNull(ri.Source) || json.Unmarshal(ri.Source, &src) != nil || strings.TrimSpace(src.Repo) == "" {
		return nil, fmt.Errorf("%w: source.repo is required", artifact.ErrMissingSource)
	}

	if isNull(ri.Items) || bytes.TrimSpace(ri.Items)[0] != '[' {
		return nil, artifact.ErrInvalidItemsList
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(ri.Items, &rawItems); err != nil {
		return nil, fmt.Errorf("%w: %v", artifact.ErrInvalidItemsList, err)
	}

	doc := &artifact.IndexDocument{
		SchemaVersion: version,
		Source:        src,
		Items:         make([]artifact.CatalogItem, 0, len(rawItems)),
	}
	if !isNull(ri.GeneratedAt) {
		// informational only; an unparsable timestamp is ignored
		_ = json.Unmarshal(ri.GeneratedAt, &doc.GeneratedAt)
	}

	seen := make(map[string]int, len(rawItems))
	for i, r := range rawItems {
		item, err := parseItem(i, r)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: items[%d]: id %q already used by items[%d]",
				artifact.ErrInvalidItemShape, i, item.ID, prev)
		}
		seen[item.ID] = i
		doc.Items = append(doc.Items, item)
	}

	return doc, nil
}

func parseItem(i int, r json.RawMessage) (artifact.CatalogItem, error) {
	var item artifact.CatalogItem
	trimmed := bytes.TrimSpace(r)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return item, fmt.Errorf("%w: items[%d] is not an object", artifact.ErrInvalidItemShape, i)
	}
	if err := json.Unmarshal(r, &item); err != nil {
		field := ""
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			field = ute.Field
		}
		if field != "" {
			return item, fmt.Errorf("%w: items[%d].%s has the wrong type", artifact.ErrInvalidItemShape, i, field)
		}
		return item, fmt.Errorf("%w: items[%d]: %v", artifact.ErrInvalidItemShape, i, err)
	}

	if err := itemValidator().Struct(item); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return item, fmt.Errorf("%w: items[%d].%s fails %q", artifact.ErrInvalidItemShape, i, fieldPath(fe), fe.Tag())
		}
		return item, fmt.Errorf("%w: items[%d]: %v", artifact.ErrInvalidItemShape, i, err)
	}
	return item, nil
}

// fieldPath strips the struct name prefix from a namespace like CatalogItem.tags[0]
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func isNull(r json.RawMessage) bool {
	t := bytes.TrimSpace(r)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
