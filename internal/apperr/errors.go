// Package apperr defines the error kinds shared across primer components.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a dotted path resolved to nothing on local disk.
// It is recoverable: callers ensure the bundle and retry resolution.
var ErrNotFound = errors.New("content not found")

// FetchError reports a network or HTTP status failure against a specific
// resource. It is surfaced to the caller as-is; retry policy belongs to the
// CLI layer, not the cache.
type FetchError struct {
	URL        string
	StatusCode int // 0 when the transport failed before a response arrived
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ManifestError reports that a registry document failed to parse or failed
// schema validation. A broken registry is never treated as an empty one.
type ManifestError struct {
	Err error
}

func (e *ManifestError) Error() string { return fmt.Sprintf("manifest: %v", e.Err) }

func (e *ManifestError) Unwrap() error { return e.Err }
