package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/admitio/pkg/conditions"
	"github.com/dukex/admitio/pkg/eventbus"
	"github.com/dukex/admitio/pkg/events"
	"github.com/dukex/admitio/pkg/facts"
	"github.com/dukex/admitio/pkg/locks"
	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/otelhelper"
	"github.com/dukex/admitio/pkg/permissions"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExecutionContext carries caller-supplied annotations for the status entry written
// by a transition.
type ExecutionContext struct {
	Label string
	Notes string
}

// Executor is the state machine core. It determines which transitions are legal for
// an application, executes transitions atomically, and writes the audit trail. No
// other component mutates an application's current stage.
type Executor struct {
	persistence persistence.Persistence
	facts       facts.Provider
	permissions permissions.Checker
	locker      locks.Locker
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewExecutor(
	persistence persistence.Persistence,
	factsProvider facts.Provider,
	checker permissions.Checker,
	locker locks.Locker,
	eventBus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		persistence: persistence,
		facts:       factsProvider,
		permissions: checker,
		locker:      locker,
		eventBus:    eventBus,
		tracer:      tracer,
		logger:      logger.With("module", "workflow_executor"),
	}
}

// ActiveWorkflow resolves the single active workflow for an application type.
func (e *Executor) ActiveWorkflow(ctx context.Context, applicationType string) (*models.Workflow, error) {
	return e.persistence.WorkflowRepository().GetActiveByType(ctx, applicationType)
}

// CurrentStage returns the application's current stage: the stage of its most
// recent status entry, resolved against the active workflow for its type.
func (e *Executor) CurrentStage(ctx context.Context, applicationID string) (*models.Stage, error) {
	workflow, entry, err := e.resolve(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	stage := workflow.StageByID(entry.StageID)
	if stage == nil {
		return nil, fmt.Errorf("current stage %s of application %s is not part of active workflow %s",
			entry.StageID, applicationID, workflow.ID)
	}

	return stage, nil
}

// History returns the application's full audit trail, oldest entry first.
func (e *Executor) History(ctx context.Context, applicationID string) ([]*models.StatusEntry, error) {
	return e.persistence.StatusRepository().History(ctx, applicationID)
}

// Initialize places an application at the workflow's first stage (lowest sequence)
// by writing its first status entry. Fails if the application already has history.
func (e *Executor) Initialize(ctx context.Context, applicationID string, actor *models.Actor) (*models.StatusEntry, error) {
	applicationType, err := e.facts.ApplicationType(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve application type: %w", err)
	}

	workflow, err := e.persistence.WorkflowRepository().GetActiveByType(ctx, applicationType)
	if err != nil {
		return nil, err
	}

	initial := firstStage(workflow)
	if initial == nil {
		return nil, fmt.Errorf("active workflow %s has no stages", workflow.ID)
	}

	entry := e.newStatusEntry(applicationID, initial, actor, ExecutionContext{Label: "submitted"})

	err = e.persistence.StatusRepository().Append(ctx, entry, "")
	if err != nil {
		return nil, err
	}

	e.emitStageEntered(ctx, workflow, initial, entry, "", false)

	return entry, nil
}

// GetAvailableTransitions returns the transitions currently legal for the
// application: source stage matches, conditions hold against fresh facts, and the
// actor (when given) holds every required permission. Manual transitions the actor
// cannot perform are excluded, not errors, so the list is always directly
// actionable.
func (e *Executor) GetAvailableTransitions(ctx context.Context, applicationID string, actor *models.Actor) ([]*models.Transition, error) {
	workflow, entry, err := e.resolve(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	snapshot, err := e.facts.Snapshot(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact snapshot: %w", err)
	}

	available := make([]*models.Transition, 0)

	for _, transition := range workflow.TransitionsFrom(entry.StageID) {
		if !conditions.Evaluate(transition.Conditions, snapshot) {
			continue
		}

		if actor != nil && !transition.IsAutomatic {
			allowed, err := e.permissions.HasPermissions(ctx, actor, transition.RequiredPermissions)
			if err != nil {
				return nil, fmt.Errorf("permission check failed: %w", err)
			}

			if !allowed {
				continue
			}
		}

		available = append(available, transition)
	}

	return available, nil
}

// StageRequirements is the editor-facing view of what a stage demands before an
// application may leave it.
type StageRequirements struct {
	Documents []string `json:"documents"`
	Actions   []string `json:"actions"`
	Satisfied bool     `json:"satisfied"`
}

// EvaluateStageRequirements reports the stage's required documents and actions and
// whether the application's facts currently satisfy them. Documents are satisfied
// by the documents_verified fact; each required action by an "action:<name>" fact.
func (e *Executor) EvaluateStageRequirements(ctx context.Context, applicationID string, stage *models.Stage) (*StageRequirements, error) {
	snapshot, err := e.facts.Snapshot(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact snapshot: %w", err)
	}

	requirements := &StageRequirements{
		Documents: append([]string(nil), stage.RequiredDocuments...),
		Actions:   append([]string(nil), stage.RequiredActions...),
		Satisfied: true,
	}

	if len(stage.RequiredDocuments) > 0 {
		verified, ok := snapshot[models.FactDocumentsVerified].(bool)
		if !ok || !verified {
			requirements.Satisfied = false
		}
	}

	for _, action := range stage.RequiredActions {
		done, ok := snapshot["action:"+action].(bool)
		if !ok || !done {
			requirements.Satisfied = false
		}
	}

	return requirements, nil
}

// ExecuteTransition advances the application through the given transition.
//
// Protocol, executed under the application's exclusive lock:
//  1. re-read the current stage; mismatch fails with InvalidTransitionError
//  2. evaluate conditions against fresh facts; failure carries the missing list
//  3. manual transitions check actor permissions; automatic ones skip this step
//  4. append the status entry in one atomic unit; the entry is the sole
//     authority for "current stage"
//  5. emit the stage-entered event after commit
//
// Any failure before the commit leaves no partial effect. Retrying an already
// executed transition fails at step 1: the current stage no longer matches.
func (e *Executor) ExecuteTransition(
	ctx context.Context,
	applicationID string,
	transitionID string,
	actor *models.Actor,
	execCtx ExecutionContext,
) (*models.StatusEntry, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute_transition",
		attribute.String(otelhelper.ApplicationIDKey, applicationID),
		attribute.String(otelhelper.TransitionIDKey, transitionID),
	)
	defer span.End()

	logger := e.logger.With("application_id", applicationID, "transition_id", transitionID)

	release, err := e.locker.Acquire(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire application lock: %w", err)
	}
	defer release()

	workflow, current, err := e.resolve(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	transition := workflow.TransitionByID(transitionID)
	if transition == nil {
		return nil, fmt.Errorf("transition %s is not part of active workflow %s", transitionID, workflow.ID)
	}

	// Step 1: source stage must match the freshly read current stage.
	if transition.SourceStageID != current.StageID {
		return nil, &InvalidTransitionError{
			ApplicationID: applicationID,
			TransitionID:  transition.ID,
			ExpectedStage: transition.SourceStageID,
			CurrentStage:  current.StageID,
		}
	}

	// Step 2: conditions against fresh facts.
	snapshot, err := e.facts.Snapshot(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact snapshot: %w", err)
	}

	if missing := conditions.MissingRequirements(transition.Conditions, snapshot); len(missing) > 0 {
		return nil, &StageRequirementsNotMetError{
			ApplicationID: applicationID,
			TransitionID:  transition.ID,
			Missing:       missing,
		}
	}

	// Step 3: permissions, manual transitions only. Automatic transitions are gated
	// purely by conditions. The checker owns the anonymous-caller decision: an empty
	// required set passes for anyone, a non-empty one fails without an actor.
	if !transition.IsAutomatic {
		allowed, err := e.permissions.HasPermissions(ctx, actor, transition.RequiredPermissions)
		if err != nil {
			return nil, fmt.Errorf("permission check failed: %w", err)
		}

		if !allowed {
			denied := &PermissionDeniedError{
				TransitionID: transition.ID,
				Required:     transition.RequiredPermissions,
			}
			if actor != nil {
				denied.ActorID = actor.ID
			}

			return nil, denied
		}
	}

	target := workflow.StageByID(transition.TargetStageID)
	if target == nil {
		return nil, fmt.Errorf("target stage %s is not part of workflow %s", transition.TargetStageID, workflow.ID)
	}

	// Step 4: atomic append, conditional on the stage observed in step 1. A
	// concurrent execution that committed first makes this fail with a conflict.
	entry := e.newStatusEntry(applicationID, target, actor, execCtx)

	err = e.persistence.StatusRepository().Append(ctx, entry, current.StageID)
	if err != nil {
		if errors.Is(err, persistence.ErrStaleCurrentStage) {
			return nil, &InvalidTransitionError{
				ApplicationID: applicationID,
				TransitionID:  transition.ID,
				ExpectedStage: transition.SourceStageID,
				CurrentStage:  current.StageID,
				Conflict:      true,
			}
		}

		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	logger.Info("Transition executed",
		"from_stage", current.StageID,
		"to_stage", target.ID,
		"automatic", transition.IsAutomatic,
	)

	// Step 5: post-commit event for the notification collaborator.
	e.emitStageEntered(ctx, workflow, target, entry, transition.ID, transition.IsAutomatic)

	return entry, nil
}

// resolve loads the application's active workflow and latest status entry.
func (e *Executor) resolve(ctx context.Context, applicationID string) (*models.Workflow, *models.StatusEntry, error) {
	applicationType, err := e.facts.ApplicationType(ctx, applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve application type: %w", err)
	}

	workflow, err := e.persistence.WorkflowRepository().GetActiveByType(ctx, applicationType)
	if err != nil {
		return nil, nil, err
	}

	history, err := e.persistence.StatusRepository().History(ctx, applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read status history: %w", err)
	}

	latest := models.Latest(history)
	if latest == nil {
		return nil, nil, ErrNoStatusHistory
	}

	return workflow, latest, nil
}

func (e *Executor) newStatusEntry(applicationID string, stage *models.Stage, actor *models.Actor, execCtx ExecutionContext) *models.StatusEntry {
	entry := &models.StatusEntry{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		StageID:       stage.ID,
		StageName:     stage.Name,
		Label:         execCtx.Label,
		Notes:         execCtx.Notes,
		CreatedAt:     time.Now().UTC(),
	}

	if entry.Label == "" {
		entry.Label = stage.Name
	}

	if actor != nil {
		entry.CreatedBy = actor.ID
	}

	return entry
}

func (e *Executor) emitStageEntered(ctx context.Context, workflow *models.Workflow, stage *models.Stage, entry *models.StatusEntry, transitionID string, automatic bool) {
	if e.eventBus == nil {
		return
	}

	event := events.StageEntered{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Type:      events.StageEnteredEvent,
			Timestamp: time.Now().UTC(),
		},
		ApplicationID:        entry.ApplicationID,
		WorkflowID:           workflow.ID,
		TransitionID:         transitionID,
		StageID:              stage.ID,
		StageName:            stage.Name,
		StatusEntryID:        entry.ID,
		NotificationTriggers: stage.NotificationTriggers,
		Automatic:            automatic,
		ActorID:              entry.CreatedBy,
	}

	// Event delivery failure never affects the committed transition.
	err := e.eventBus.Publish(ctx, entry.ApplicationID, event)
	if err != nil {
		e.logger.Error("Failed to publish stage entered event",
			"application_id", entry.ApplicationID,
			"stage_id", stage.ID,
			"error", err,
		)
	}
}

func firstStage(workflow *models.Workflow) *models.Stage {
	var first *models.Stage

	for _, stage := range workflow.Stages {
		if first == nil || stage.Sequence < first.Sequence {
			first = stage
		}
	}

	return first
}
