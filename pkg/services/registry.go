package services

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/dukex/admitio/pkg/eventbus"
	"github.com/dukex/admitio/pkg/events"
	"github.com/dukex/admitio/pkg/graph"
	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Registry manages workflow definitions: authoring, activation, duplication, and
// deletion. It enforces the single-active-workflow-per-type invariant through the
// persistence layer's atomic Activate, and the immutability of active workflows'
// structure.
type Registry struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewRegistry creates a new workflow registry service.
func NewRegistry(persistence persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Registry {
	return &Registry{
		persistence: persistence,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger.With("module", "workflow_registry"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (r *Registry) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := r.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// FetchAll returns all workflow definitions.
func (r *Registry) FetchAll(ctx context.Context) ([]*models.Workflow, error) {
	return r.persistence.WorkflowRepository().GetAll(ctx)
}

// FetchByID retrieves a workflow by its ID.
func (r *Registry) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// GetActiveWorkflow returns the single active workflow for an application type.
func (r *Registry) GetActiveWorkflow(ctx context.Context, applicationType string) (*models.Workflow, error) {
	return r.persistence.WorkflowRepository().GetActiveByType(ctx, applicationType)
}

// Create adds a new workflow definition. New workflows are always inactive;
// activation is a separate, explicit operation.
func (r *Registry) Create(ctx context.Context, workflow *models.Workflow, actor *models.Actor) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.IsActive = false
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if actor != nil {
		workflow.CreatedBy = actor.ID
	}

	assignIdentifiers(workflow)

	if err := r.checkDefinition(workflow); err != nil {
		return nil, err
	}

	err := r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update modifies an existing workflow. Structural changes (stages or transitions)
// are rejected on active workflows; duplicate, edit the copy, then activate it.
func (r *Registry) Update(ctx context.Context, workflowID string, workflow *models.Workflow, actor *models.Actor) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := r.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrWorkflowNotFound
	}

	if existing.IsActive && structurallyDiffers(existing, workflow) {
		return nil, &ActiveWorkflowModificationError{WorkflowID: workflowID}
	}

	workflow.ID = workflowID
	workflow.IsActive = existing.IsActive
	workflow.CreatedBy = existing.CreatedBy
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	assignIdentifiers(workflow)

	if err := r.checkDefinition(workflow); err != nil {
		return nil, err
	}

	err = r.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Activate marks the workflow active, atomically deactivating any other workflow of
// the same application type.
func (r *Registry) Activate(ctx context.Context, workflowID string, actor *models.Actor) error {
	workflow, err := r.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	err = r.persistence.WorkflowRepository().Activate(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to activate workflow: %w", err)
	}

	r.emit(ctx, events.WorkflowActivated{
		BaseEvent:       r.baseEvent(events.WorkflowActivatedEvent),
		WorkflowID:      workflowID,
		ApplicationType: workflow.ApplicationType,
		ActorID:         actorID(actor),
	}, workflowID)

	return nil
}

// Deactivate marks the workflow inactive, leaving its application type without an
// active workflow.
func (r *Registry) Deactivate(ctx context.Context, workflowID string, actor *models.Actor) error {
	workflow, err := r.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	err = r.persistence.WorkflowRepository().Deactivate(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to deactivate workflow: %w", err)
	}

	r.emit(ctx, events.WorkflowDeactivated{
		BaseEvent:       r.baseEvent(events.WorkflowDeactivatedEvent),
		WorkflowID:      workflowID,
		ApplicationType: workflow.ApplicationType,
		ActorID:         actorID(actor),
	}, workflowID)

	return nil
}

// Duplicate deep-copies a workflow into a new inactive definition with fresh IDs.
// Conditions and permission sets are preserved verbatim; the copy is the editable
// successor of an active workflow.
func (r *Registry) Duplicate(ctx context.Context, workflowID, newName string, actor *models.Actor) (*models.Workflow, error) {
	source, err := r.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	duplicate := &models.Workflow{
		ID:              uuid.New().String(),
		Name:            newName,
		Description:     source.Description,
		ApplicationType: source.ApplicationType,
		IsActive:        false,
		CreatedBy:       actorID(actor),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stageIDs := make(map[string]string, len(source.Stages))

	for _, stage := range source.Stages {
		copied := *stage
		copied.ID = uuid.New().String()
		copied.WorkflowID = duplicate.ID
		copied.RequiredDocuments = append([]string(nil), stage.RequiredDocuments...)
		copied.RequiredActions = append([]string(nil), stage.RequiredActions...)
		copied.NotificationTriggers = append([]string(nil), stage.NotificationTriggers...)

		stageIDs[stage.ID] = copied.ID
		duplicate.Stages = append(duplicate.Stages, &copied)
	}

	for _, transition := range source.Transitions {
		copied := *transition
		copied.ID = uuid.New().String()
		copied.WorkflowID = duplicate.ID
		copied.SourceStageID = stageIDs[transition.SourceStageID]
		copied.TargetStageID = stageIDs[transition.TargetStageID]
		copied.Conditions = append([]models.Condition(nil), transition.Conditions...)
		copied.RequiredPermissions = append([]string(nil), transition.RequiredPermissions...)

		duplicate.Transitions = append(duplicate.Transitions, &copied)
	}

	if err := r.checkDefinition(duplicate); err != nil {
		return nil, err
	}

	err = r.persistence.WorkflowRepository().Save(ctx, duplicate)
	if err != nil {
		return nil, fmt.Errorf("failed to save duplicated workflow: %w", err)
	}

	return duplicate, nil
}

// Delete removes a workflow. Rejected when any application's status history
// references one of its stages.
func (r *Registry) Delete(ctx context.Context, workflowID string, actor *models.Actor) error {
	_, err := r.FetchByID(ctx, workflowID)
	if err != nil {
		return err
	}

	referenced, err := r.persistence.StatusRepository().StageReferenced(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to check stage references: %w", err)
	}

	if referenced {
		return &WorkflowInUseError{WorkflowID: workflowID}
	}

	err = r.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// Validate produces the advisory editor report for a workflow definition.
func (r *Registry) Validate(workflow *models.Workflow) graph.Report {
	return graph.Validate(workflow)
}

// checkDefinition enforces struct-level validation plus the hard graph constraints.
func (r *Registry) checkDefinition(workflow *models.Workflow) error {
	err := r.validator.Struct(workflow)
	if err != nil {
		return &WorkflowValidationError{
			WorkflowID: workflow.ID,
			Issues:     []string{err.Error()},
		}
	}

	for _, stage := range workflow.Stages {
		if err := r.validator.Struct(stage); err != nil {
			return &WorkflowValidationError{
				WorkflowID: workflow.ID,
				Issues:     []string{fmt.Sprintf("stage %q: %v", stage.Name, err)},
			}
		}
	}

	for _, transition := range workflow.Transitions {
		if err := r.validator.Struct(transition); err != nil {
			return &WorkflowValidationError{
				WorkflowID: workflow.ID,
				Issues:     []string{fmt.Sprintf("transition %q: %v", transition.Name, err)},
			}
		}
	}

	if violations := graph.CheckStructure(workflow); len(violations) > 0 {
		return &WorkflowValidationError{
			WorkflowID: workflow.ID,
			Issues:     violations,
		}
	}

	return nil
}

// assignIdentifiers fills missing stage and transition IDs and pins their ownership
// to the workflow.
func assignIdentifiers(workflow *models.Workflow) {
	for _, stage := range workflow.Stages {
		if stage.ID == "" {
			stage.ID = uuid.New().String()
		}

		stage.WorkflowID = workflow.ID
	}

	for _, transition := range workflow.Transitions {
		if transition.ID == "" {
			transition.ID = uuid.New().String()
		}

		transition.WorkflowID = workflow.ID
	}
}

// structurallyDiffers reports whether the update touches stages or transitions.
// Name and description edits on active workflows are allowed; rewiring is not.
func structurallyDiffers(existing, updated *models.Workflow) bool {
	if updated.Stages == nil && updated.Transitions == nil {
		return false
	}

	return !reflect.DeepEqual(existing.Stages, updated.Stages) ||
		!reflect.DeepEqual(existing.Transitions, updated.Transitions)
}

// Event delivery failure never affects the committed registry change.
func (r *Registry) emit(ctx context.Context, event eventbus.Event, key string) {
	if r.eventBus == nil {
		return
	}

	err := r.eventBus.Publish(ctx, key, event)
	if err != nil {
		r.logger.Error("Failed to publish workflow event",
			"event_type", event.GetType(),
			"key", key,
			"error", err,
		)
	}
}

func (r *Registry) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

func actorID(actor *models.Actor) string {
	if actor == nil {
		return ""
	}

	return actor.ID
}
