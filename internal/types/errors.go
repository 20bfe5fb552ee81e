package types

import (
	"errors"
	"fmt"
)

// ValidationInputError indicates a malformed submission. No job is created.
type ValidationInputError struct {
	Field   string
	Message string
}

func (e *ValidationInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Message)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// NotFoundError indicates an unknown job or asset
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// AlreadyExistsError is returned when creating a job whose id is taken
type AlreadyExistsError struct {
	TenantID string
	JobID    string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("job already exists: %s/%s", e.TenantID, e.JobID)
}

// StatusConflictError is returned when a conditional update loses a race or
// requests a transition the state machine does not allow
type StatusConflictError struct {
	TenantID string
	JobID    string
	Expected JobStatus
	Actual   JobStatus
	Reason   string
}

func (e *StatusConflictError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "status mismatch"
	}
	return fmt.Sprintf("status conflict on job %s/%s: %s (expected %s, got %s)", e.TenantID, e.JobID, reason, e.Expected, e.Actual)
}

// StageFailure wraps the error raised by a pipeline stage
type StageFailure struct {
	Stage Stage
	Cause error
}

func (e *StageFailure) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s stage failed", e.Stage)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}

// ProviderUnavailableError indicates the model provider could not be reached
// or rejected our credentials. Malformed model output is never reported this way.
type ProviderUnavailableError struct {
	Provider string
	Cause    error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("model provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is or wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStatusConflict reports whether err is or wraps a StatusConflictError
func IsStatusConflict(err error) bool {
	var sc *StatusConflictError
	return errors.As(err, &sc)
}
