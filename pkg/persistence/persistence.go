// Package persistence provides the data storage abstraction for workflows and
// application status streams.
package persistence

import (
	"context"

	"github.com/dukex/admitio/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	StatusRepository() StatusRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// GetActiveByType returns the single active workflow for an application
	// type, or ErrActiveWorkflowNotFound.
	GetActiveByType(ctx context.Context, applicationType string) (*models.Workflow, error)

	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// Activate atomically deactivates every other workflow sharing the given
	// workflow's application type and activates this one. At most one workflow
	// per type is active at any point observable by readers.
	Activate(ctx context.Context, id string) error

	Deactivate(ctx context.Context, id string) error
}

// StatusRepository stores the append-only status-entry stream per application.
type StatusRepository interface {
	History(ctx context.Context, applicationID string) ([]*models.StatusEntry, error)

	// Append inserts the entry only if the application's current stage (its
	// latest entry) still equals expectedStageID, in one atomic unit. A stale
	// expectation fails with ErrStaleCurrentStage and writes nothing. An empty
	// expectedStageID asserts the application has no history yet (initial
	// placement).
	Append(ctx context.Context, entry *models.StatusEntry, expectedStageID string) error

	// CurrentAtStages returns the latest status entry of every application
	// whose current stage is one of the given stages. Used by the automatic
	// transition scanner.
	CurrentAtStages(ctx context.Context, stageIDs []string) ([]*models.StatusEntry, error)

	// StageReferenced reports whether any application's history references a
	// stage of the given workflow. Guards workflow deletion.
	StageReferenced(ctx context.Context, workflowID string) (bool, error)
}
