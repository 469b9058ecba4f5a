package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// AuthError means the authentication endpoint rejected the stored
// credentials. It is fatal and never retried.
type AuthError struct {
	Endpoint string
	Status   int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed at %s (status %d)", e.Endpoint, e.Status)
}

// FetchError is a non-recoverable fetch failure: an unexpected HTTP status,
// an API-reported error that is not a throttle signal, or a retry budget
// exhausted on a transient condition.
type FetchError struct {
	Endpoint string
	Status   int
	Payload  string
}

func (e *FetchError) Error() string {
	if e.Payload != "" {
		return fmt.Sprintf("fetch failed at %s (status %d): %s", e.Endpoint, e.Status, e.Payload)
	}
	return fmt.Sprintf("fetch failed at %s (status %d)", e.Endpoint, e.Status)
}

// TransientError wraps an error that is safe to retry (throttle signal,
// rate limit, expired token, network blip).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient network conditions.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	return false
}
