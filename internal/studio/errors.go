package studio

import (
	"errors"
	"fmt"
)

var (
	ErrPollerRunning    = errors.New("poller already running")
	ErrPollerStopped    = errors.New("poller stopped")
	ErrPollerNotRunning = errors.New("poller not running")
)

// ValidationError rejects a submission before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid generation request: %s %s", e.Field, e.Reason)
}

// SubmissionError wraps a transport failure or server rejection of a create call.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit generation request: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// TransientFetchError records a single failed poll cycle.
type TransientFetchError struct {
	Seq   uint64
	Cause error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch jobs (seq %d): %v", e.Seq, e.Cause)
}

func (e *TransientFetchError) Unwrap() error { return e.Cause }
