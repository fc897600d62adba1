package reports

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can branch on them.
type ErrorKind string

const (
	KindAuth          ErrorKind = "auth"
	KindNetwork       ErrorKind = "network"
	KindRateLimited   ErrorKind = "rate_limited"
	KindServer        ErrorKind = "server"
	KindClient        ErrorKind = "client"
	KindSerialization ErrorKind = "serialization"
	KindFileWrite     ErrorKind = "file_write"
)

// Error is the failure type surfaced by the transport and the serializer.
// StatusCode is 0 for local (non-HTTP) failures, Attempts is the number of
// attempts consumed before giving up.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status=%d attempts=%d): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure can self-resolve on a later attempt.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindServer, KindRateLimited:
		return true
	}
	return false
}

// KindOf extracts the ErrorKind from err. Unknown errors map to KindNetwork
// so they stay scoped to one application instead of aborting the run.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNetwork
}

// IsAuth reports whether err is an authentication failure, which is fatal to
// the whole run.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// AttemptsOf returns the attempt count carried by err, or 1 when unknown.
func AttemptsOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Attempts > 0 {
		return e.Attempts
	}
	return 1
}
