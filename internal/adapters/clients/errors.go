// Package clients provides the instrumented HTTP client used to reach remote
// quote sources.
package clients

import (
	"errors"
	"fmt"
)

// Transport-level failures. Callers translate these into domain errors.
var (
	// ErrCircuitOpen is returned without a network call while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error once retries run out.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// StatusError reports a 5xx response that was still failing after the last
// attempt.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: HTTP %d", e.StatusCode)
}
