package artifact

import (
	"errors"
	"fmt"
	"net/http"
)

// Configuration and source errors.
var (
	// ErrInvalidRepoFormat indicates a repository identifier is not owner/repo.
	ErrInvalidRepoFormat = errors.New("invalid repository format")

	// ErrRepoNotAllowlisted indicates the configured repository is not in the allowlist.
	ErrRepoNotAllowlisted = errors.New("repository not allowlisted")
)

// Network errors.
var (
	ErrFetchFailed     = errors.New("fetch failed")
	ErrFetchTimeout    = errors.New("fetch timed out")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Index validation errors.
var (
	ErrMalformedIndex    = errors.New("malformed index")
	ErrUnsupportedSchema = errors.New("unsupported index schema version")
	ErrMissingSource     = errors.New("index source missing")
	ErrInvalidItemsList  = errors.New("index items is not a list")
	ErrInvalidItemShape  = errors.New("invalid item")
)

// Installation errors.
var (
	ErrPathTraversal        = errors.New("path escapes the sandbox")
	ErrUnsupportedKind      = errors.New("unsupported item kind")
	ErrIntegrityMismatch    = errors.New("integrity mismatch")
	ErrNoWorkspace          = errors.New("no workspace")
	ErrUntrustedWorkspace   = errors.New("workspace not trusted")
	ErrRenameExhausted      = errors.New("no free rename candidate")
	ErrManifestReadFailure  = errors.New("receipt could not be read")
	ErrManifestWriteFailure = errors.New("receipt could not be written")
)

// FetchError carries the HTTP status of a failed fetch.
// It matches ErrFetchFailed with errors.Is.
type FetchError struct {
	Status int
	URL    string // already redacted
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %s returned %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Is makes errors.Is(err, ErrFetchFailed) hold for any FetchError
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// userMessages maps sentinels to text suitable for non-technical users
var userMessages = []struct {
	err error
	msg string
}{
	{ErrUntrustedWorkspace, "This workspace is not trusted, so nothing was installed. Re-run with --trust or add this folder to trustedWorkspaces in your folio config."},
	{ErrManifestWriteFailure, "The install record in .github/.folio could not be saved."},
	{ErrManifestReadFailure, "The install record could not be read and was ignored."},
	{ErrNoWorkspace, "No workspace folder was found. Run folio inside a project or pass --workspace."},
	{ErrInvalidRepoFormat, "The configured repository must look like owner/repo."},
	{ErrRepoNotAllowlisted, "The configured repository is not on the allowlist."},
	{ErrFetchTimeout, "The download took too long and was cancelled."},
	{ErrPayloadTooLarge, "The remote file is larger than the configured limit."},
	{ErrFetchFailed, "The remote file could not be downloaded."},
	{ErrMalformedIndex, "The catalogue could not be read; it is not valid JSON."},
	{ErrUnsupportedSchema, "The catalogue uses a format version this folio does not support."},
	{ErrMissingSource, "The catalogue does not say which repository it describes."},
	{ErrInvalidItemsList, "The catalogue item list is malformed."},
	{ErrInvalidItemShape, "A catalogue item is missing required information."},
	{ErrPathTraversal, "A catalogue entry points outside the allowed folder and was blocked."},
	{ErrUnsupportedKind, "A catalogue entry has a kind folio does not know how to install."},
	{ErrIntegrityMismatch, "The downloaded file did not match its published checksum and was not installed."},
	{ErrRenameExhausted, "No free file name could be found for a renamed copy."},
}

// Describe returns a one-line, user-facing message for err.
// Unknown errors fall back to err.Error().
func Describe(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
