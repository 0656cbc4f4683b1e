package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for adapter failure classification. Use
// errors.Is(err, provider.ErrPermissionDenied) to check.
var (
	// ErrUnavailable means the adapter cannot run on this platform or
	// configuration. Terminal — no retry will help.
	ErrUnavailable = errors.New("provider: unavailable")

	// ErrPermissionDenied means the user declined access. Terminal
	// until the user re-grants.
	ErrPermissionDenied = errors.New("provider: permission denied")

	// ErrNoData means the provider has no samples for the requested
	// window. Callers treat this as a zero-valued result.
	ErrNoData = errors.New("provider: no data")
)

// APIError wraps a sentinel error with the HTTP status code and
// response body from a provider API, for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
