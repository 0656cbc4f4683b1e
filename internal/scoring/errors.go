package scoring

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend failures the engine reacts to
// differently. Wrap with %w and check with errors.Is.
var (
	// ErrAuthExpired means the stored credentials were refused and a
	// refresh did not help. Re-login is required.
	ErrAuthExpired = errors.New("scoring: authorization expired")

	// ErrRejected means the backend refused the payload itself. Retrying
	// the same submission will not succeed.
	ErrRejected = errors.New("scoring: submission rejected")
)

// APIError carries the HTTP status and response body of a failed
// backend call, wrapping a sentinel when one applies.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scoring: HTTP %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}

	return fmt.Sprintf("scoring: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
