package llm

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors surfaced to the pipeline after transport-level retries
// are exhausted.
var (
	// ErrOracleUnavailable means the oracle could not be reached or kept
	// failing after retries. Fatal for the current pipeline run.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrOracleTimeout means the oracle did not answer within the per-call
	// deadline after retries.
	ErrOracleTimeout = errors.New("oracle timeout")
)

// TransientError wraps a temporary failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }

func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError marks an error as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError wraps a permanent failure that must not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }

func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError marks an error as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether the error must not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// isTimeout reports whether the error chain indicates a deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
