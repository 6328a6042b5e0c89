// Package web provides HTTP request and response types for the admissions API.
package web

import "github.com/dukex/admitio/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Workflows are always created inactive; activation is a separate, explicit call.
type CreateWorkflowRequest struct {
	Name            string               `json:"name"             validate:"required,min=3"`
	Description     string               `json:"description"`
	ApplicationType string               `json:"application_type" validate:"required"`
	Stages          []*models.Stage      `json:"stages"`
	Transitions     []*models.Transition `json:"transitions"`
}

// UpdateWorkflowRequest represents the request body for updating a workflow.
// All fields are optional to support partial updates; structural fields are
// rejected by the registry while the workflow is active.
type UpdateWorkflowRequest struct {
	Name        *string              `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string              `json:"description,omitempty"`
	Stages      []*models.Stage      `json:"stages,omitempty"`
	Transitions []*models.Transition `json:"transitions,omitempty"`
}

// DuplicateWorkflowRequest represents the request body for duplicating a workflow.
type DuplicateWorkflowRequest struct {
	Name string `json:"name" validate:"required,min=3"`
}

// ExecuteTransitionRequest represents the request body for executing a transition
// on an application.
type ExecuteTransitionRequest struct {
	Label string `json:"label"`
	Notes string `json:"notes"`
}

// TransitionExecutedResponse wraps the status entry appended by a successful
// transition execution.
type TransitionExecutedResponse struct {
	Entry *models.StatusEntry `json:"entry"`
}

// HealthResponse reports persistence health for readiness probes.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
