// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	ErrWorkflowNotFound           = errors.New("workflow not found")
	ErrWorkflowNil                = errors.New("workflow cannot be nil")
	ErrActiveWorkflowModification = errors.New("cannot structurally modify an active workflow")
	ErrWorkflowValidation         = errors.New("workflow definition is invalid")
	ErrWorkflowInUse              = errors.New("workflow is referenced by application status history")
	ErrDefinitionSchema           = errors.New("workflow definition does not match schema")
)

// Error codes, stable across releases.
const (
	CodeActiveWorkflowModification = "active_workflow_modification"
	CodeWorkflowValidation         = "workflow_validation"
	CodeWorkflowInUse              = "workflow_in_use"
)

// ActiveWorkflowModificationError indicates a structural edit (stages or
// transitions) was attempted on an active workflow. Active workflows are immutable;
// duplicate into an inactive copy, edit, then activate the copy.
type ActiveWorkflowModificationError struct {
	WorkflowID string `json:"workflow_id"`
}

func (e *ActiveWorkflowModificationError) Error() string {
	return fmt.Sprintf("workflow %s is active: stages and transitions cannot be modified in place", e.WorkflowID)
}

func (e *ActiveWorkflowModificationError) Is(target error) bool {
	return target == ErrActiveWorkflowModification
}

func (e *ActiveWorkflowModificationError) Code() string {
	return CodeActiveWorkflowModification
}

// WorkflowValidationError indicates a create or update violates the hard
// stage/transition invariants. Issues lists every violation found.
type WorkflowValidationError struct {
	WorkflowID string   `json:"workflow_id,omitempty"`
	Issues     []string `json:"issues"`
}

func (e *WorkflowValidationError) Error() string {
	return "workflow definition is invalid: " + strings.Join(e.Issues, "; ")
}

func (e *WorkflowValidationError) Is(target error) bool {
	return target == ErrWorkflowValidation
}

func (e *WorkflowValidationError) Code() string {
	return CodeWorkflowValidation
}

// WorkflowInUseError indicates a delete was rejected because application history
// references one of the workflow's stages.
type WorkflowInUseError struct {
	WorkflowID string `json:"workflow_id"`
}

func (e *WorkflowInUseError) Error() string {
	return fmt.Sprintf("workflow %s cannot be deleted: application status history references its stages", e.WorkflowID)
}

func (e *WorkflowInUseError) Is(target error) bool {
	return target == ErrWorkflowInUse
}

func (e *WorkflowInUseError) Code() string {
	return CodeWorkflowInUse
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrWorkflowValidation) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrDefinitionSchema)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrActiveWorkflowModification) ||
		errors.Is(err, ErrWorkflowInUse)
}
