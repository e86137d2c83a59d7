package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrStepOutOfRange   = errors.New("step out of range")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMissingIdentity  = errors.New("authenticated user identifier is required")
	ErrBackendTimeout   = errors.New("backend call timed out")
	ErrBackendRejected  = errors.New("backend rejected the update")
	ErrBackendUnhealthy = errors.New("backend temporarily unavailable")
)

// ValidationError is raised by step validation, never by the profile store.
type ValidationError struct {
	Step StepID
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %s: invalid profile: %v", e.Step, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError wraps a local storage read or write failure.
// In-memory state is kept when one is returned.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SyncError is a backend reconciliation failure. Completion is blocked and the
// local draft is preserved; Retryable tells the caller whether to offer a retry.
type SyncError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Timeout reports whether the failure came from an expired deadline.
func (e *SyncError) Timeout() bool {
	return errors.Is(e.Err, ErrBackendTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
}
