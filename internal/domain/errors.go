package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the scoring engine. Handlers map these to HTTP status
// codes via errors.Is; services wrap them with context via fmt.Errorf("%w").
var (
	// ErrInvalidConfig - malformed rule or non-descending tier thresholds.
	// Raised by config validation before any persistence; nothing is written.
	ErrInvalidConfig = errors.New("invalid scoring config")

	// ErrNotFound - unknown account or organization on single-entity lookups
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable - a backing store is unreachable. Not recoverable
	// inside the engine; callers retry (writes are overwrites, so retry-safe).
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AccountScoringError marks one account's scoring failure inside a batch.
// The orchestrator skips the account and reports it; the batch continues.
type AccountScoringError struct {
	AccountID string
	Err       error
}

// Error implements the error interface
func (e *AccountScoringError) Error() string {
	return fmt.Sprintf("scoring account %s: %v", e.AccountID, e.Err)
}

// Unwrap returns the underlying cause
func (e *AccountScoringError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the wire code carried in the API error envelope
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return "INVALID_CONFIG"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps an error to its HTTP status code
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
