// Package integrity computes and checks content digests for installed items.
package integrity

import (
	_ "crypto/sha256"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/kennyg/folio/internal/artifact"
)

// Digest returns the lowercase hex sha256 of content
func Digest(content []byte) string {
	return digest.SHA256.FromBytes(content).Encoded()
}

// Verify checks content against an expected digest.
// expected may be bare hex or "sha256:<hex>"; an empty expected digest is not checked.
func Verify(content []byte, expected string) error {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return nil
	}

	want, err := normalize(expected)
	if err != nil {
		return fmt.Errorf("%w: %v", artifact.ErrIntegrityMismatch, err)
	}

	got := digest.SHA256.FromBytes(content)
	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", artifact.ErrIntegrityMismatch, want.Encoded(), got.Encoded())
	}
	return nil
}

func normalize(expected string) (digest.Digest, error) {
	d := digest.Digest(strings.ToLower(expected))
	if !strings.Contains(expected, ":") {
		d = digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(expected))
	}
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("declared digest %q: %w", expected, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return "", fmt.Errorf("declared digest %q: only sha256 is supported", expected)
	}
	return d, nil
}
