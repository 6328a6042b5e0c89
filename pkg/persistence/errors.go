// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrActiveWorkflowNotFound indicates no active workflow exists for the given application type.
	ErrActiveWorkflowNotFound = errors.New("active workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrStaleCurrentStage indicates a status append lost a race: the application's
	// current stage no longer matches the caller's expectation.
	ErrStaleCurrentStage = errors.New("application current stage changed since read")

	// ErrStatusEntryExists indicates an entry with the same identifier was already appended.
	ErrStatusEntryExists = errors.New("status entry already exists")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Activate")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// StatusError wraps status-stream errors with additional context.
type StatusError struct {
	Op            string
	ApplicationID string
	Err           error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s operation failed for application %s: %v", e.Op, e.ApplicationID, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStatusError creates a new status-stream error with context.
func NewStatusError(op, applicationID string, err error) *StatusError {
	return &StatusError{
		Op:            op,
		ApplicationID: applicationID,
		Err:           err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsActiveWorkflowNotFound checks if an error indicates no active workflow exists for a type.
func IsActiveWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrActiveWorkflowNotFound)
}

// IsStaleCurrentStage checks if an error indicates a lost status-append race.
func IsStaleCurrentStage(err error) bool {
	return errors.Is(err, ErrStaleCurrentStage)
}
