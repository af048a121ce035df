package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/kennyg/folio/internal/artifact"
)

// DefaultHost is public GitHub
const DefaultHost = "github.com"

// Repo identifies a catalogue repository
type Repo struct {
	Host  string // github.com or a GitHub Enterprise hostname
	Owner string
	Name  string
}

var (
	// Matches owner/repo
	repoShorthand = regexp.MustCompile(`^([a-zA-Z0-9_-]+)/([a-zA-Z0-9_.-]+)$`)

	// Matches host/owner/repo (host must contain a dot)
	repoWithHost = regexp.MustCompile(`^([a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)+)/([a-zA-Z0-9_-]+)/([a-zA-Z0-9_.-]+)$`)

	// Git refs: no spaces, no "..", no leading "/" or "-"
	refPattern = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)
)

// ParseRepo parses owner/repo, host/owner/repo or an https URL to a repository
func ParseRepo(input string) (Repo, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Repo{}, fmt.Errorf("%w: empty repository", artifact.ErrInvalidRepoFormat)
	}

	if strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://") {
		u, err := url.Parse(input)
		if err != nil || u.Host == "" {
			return Repo{}, fmt.Errorf("%w: %q", artifact.ErrInvalidRepoFormat, input)
		}
		input = u.Host + "/" + strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	}

	if m := repoShorthand.FindStringSubmatch(input); m != nil {
		return newRepo(DefaultHost, m[1], m[2])
	}
	if m := repoWithHost.FindStringSubmatch(input); m != nil {
		return newRepo(strings.ToLower(m[1]), m[2], m[3])
	}
	return Repo{}, fmt.Errorf("%w: %q (want owner/repo)", artifact.ErrInvalidRepoFormat, input)
}

func newRepo(host, owner, name string) (Repo, error) {
	if name == "." || name == ".." {
		return Repo{}, fmt.Errorf("%w: %q", artifact.ErrInvalidRepoFormat, owner+"/"+name)
	}
	return Repo{Host: host, Owner: owner, Name: name}, nil
}

// ValidateRef rejects refs that could rewrite the URL path
func ValidateRef(ref string) error {
	if ref == "" || !refPattern.MatchString(ref) || strings.Contains(ref, "..") ||
		strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "-") || strings.HasSuffix(ref, "/") {
		return fmt.Errorf("%w: invalid ref %q", artifact.ErrInvalidRepoFormat, ref)
	}
	return nil
}

// IsEnterprise returns true if this is a GitHub Enterprise repository
func (r Repo) IsEnterprise() bool {
	return r.Host != "" && r.Host != DefaultHost
}

// String returns owner/repo, prefixed with the host for GitHub Enterprise
func (r Repo) String() string {
	if r.IsEnterprise() {
		return fmt.Sprintf("%s/%s/%s", r.Host, r.Owner, r.Name)
	}
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// RawURL returns the raw content URL for a file at ref
func (r Repo) RawURL(ref, filePath string) string {
	escaped := escapePath(filePath)

	// Public GitHub
	if !r.IsEnterprise() {
		return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s",
			url.PathEscape(r.Owner), url.PathEscape(r.Name), escapePath(ref), escaped)
	}

	// GitHub Enterprise - use /raw/ path
	return fmt.Sprintf("https://%s/%s/%s/raw/%s/%s",
		r.Host, url.PathEscape(r.Owner), url.PathEscape(r.Name), escapePath(ref), escaped)
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// Allowed reports whether r matches an allowlist entry.
// Entries are owner/repo, owner/* or host/owner/repo; matching ignores case.
func (r Repo) Allowed(allowlist []string) bool {
	for _, entry := range allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		host := DefaultHost
		parts := strings.Split(entry, "/")
		if len(parts) == 3 {
			host, parts = parts[0], parts[1:]
		}
		if len(parts) != 2 || host != strings.ToLower(r.Host) {
			continue
		}
		if parts[0] != strings.ToLower(r.Owner) {
			continue
		}
		if parts[1] == "*" || parts[1] == strings.ToLower(r.Name) {
			return true
		}
	}
	return false
}

// CheckAllowed returns ErrRepoNotAllowlisted unless r is allowlisted
func (r Repo) CheckAllowed(allowlist []string) error {
	if !r.Allowed(allowlist) {
		return fmt.Errorf("%w: %s", artifact.ErrRepoNotAllowlisted, r)
	}
	return nil
}
