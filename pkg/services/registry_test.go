package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/admitio/pkg/eventbus"
	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/dukex/admitio/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftWorkflow(applicationType string) *models.Workflow {
	return &models.Workflow{
		Name:            "Undergraduate Admissions",
		Description:     "Standard undergraduate pipeline",
		ApplicationType: applicationType,
		Stages: []*models.Stage{
			{ID: "submitted", Name: "Submitted", Sequence: 1},
			{ID: "review", Name: "Under Review", Sequence: 2},
			{ID: "decision", Name: "Decision", Sequence: 3, IsTerminal: true},
		},
		Transitions: []*models.Transition{
			{
				ID:            "t-begin-review",
				SourceStageID: "submitted",
				TargetStageID: "review",
				Name:          "Begin review",
				Conditions: []models.Condition{
					{Field: models.FactFeePaid, Operator: models.OpEqual, Value: true},
				},
				RequiredPermissions: []string{"review_application"},
			},
			{
				ID:            "t-decide",
				SourceStageID: "review",
				TargetStageID: "decision",
				Name:          "Decide",
			},
		},
	}
}

func newTestRegistry(t *testing.T) (*Registry, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRegistry(store, nil, logger), store
}

func TestRegistry_Create(t *testing.T) {
	registry, _ := newTestRegistry(t)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), &models.Actor{ID: "admin-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsActive, "new workflows are always inactive")
	assert.Equal(t, "admin-1", created.CreatedBy)
	assert.False(t, created.CreatedAt.IsZero())

	for _, stage := range created.Stages {
		assert.Equal(t, created.ID, stage.WorkflowID)
	}

	for _, transition := range created.Transitions {
		assert.Equal(t, created.ID, transition.WorkflowID)
	}
}

func TestRegistry_Create_RejectsAutomaticWithPermissions(t *testing.T) {
	registry, _ := newTestRegistry(t)

	workflow := draftWorkflow("undergraduate")
	workflow.Transitions[1].IsAutomatic = true
	workflow.Transitions[1].RequiredPermissions = []string{"make_decision"}

	_, err := registry.Create(t.Context(), workflow, nil)

	require.True(t, IsValidationError(err))

	var validationErr *WorkflowValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Issues[0], "must not require permissions")
}

func TestRegistry_SingleActiveWorkflowPerType(t *testing.T) {
	registry, _ := newTestRegistry(t)

	first, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	second, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	require.NoError(t, registry.Activate(t.Context(), first.ID, nil))

	active, err := registry.GetActiveWorkflow(t.Context(), "undergraduate")
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// Activating the successor implicitly retires the incumbent.
	require.NoError(t, registry.Activate(t.Context(), second.ID, nil))

	active, err = registry.GetActiveWorkflow(t.Context(), "undergraduate")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	previous, err := registry.FetchByID(t.Context(), first.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsActive)
}

func TestRegistry_ActivationIsPerType(t *testing.T) {
	registry, _ := newTestRegistry(t)

	undergrad, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	graduate, err := registry.Create(t.Context(), draftWorkflow("graduate"), nil)
	require.NoError(t, err)

	require.NoError(t, registry.Activate(t.Context(), undergrad.ID, nil))
	require.NoError(t, registry.Activate(t.Context(), graduate.ID, nil))

	active, err := registry.GetActiveWorkflow(t.Context(), "undergraduate")
	require.NoError(t, err)
	assert.Equal(t, undergrad.ID, active.ID)
}

func TestRegistry_Deactivate_LeavesTypeWithoutActiveWorkflow(t *testing.T) {
	registry, _ := newTestRegistry(t)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	require.NoError(t, registry.Activate(t.Context(), created.ID, nil))
	require.NoError(t, registry.Deactivate(t.Context(), created.ID, nil))

	_, err = registry.GetActiveWorkflow(t.Context(), "undergraduate")
	assert.True(t, persistence.IsActiveWorkflowNotFound(err))
}

func TestRegistry_Update_ActiveWorkflowStructureIsImmutable(t *testing.T) {
	registry, _ := newTestRegistry(t)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)
	require.NoError(t, registry.Activate(t.Context(), created.ID, nil))

	fetched, err := registry.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)

	fetched.Stages = append(fetched.Stages, &models.Stage{Name: "Waitlist", Sequence: 4})

	_, err = registry.Update(t.Context(), created.ID, fetched, nil)
	require.True(t, IsConflictError(err))
	assert.ErrorIs(t, err, ErrActiveWorkflowModification)
}

func TestRegistry_Update_ActiveWorkflowAllowsNameEdits(t *testing.T) {
	registry, _ := newTestRegistry(t)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)
	require.NoError(t, registry.Activate(t.Context(), created.ID, nil))

	fetched, err := registry.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)

	fetched.Name = "Undergraduate Admissions 2026"

	updated, err := registry.Update(t.Context(), created.ID, fetched, nil)
	require.NoError(t, err)
	assert.Equal(t, "Undergraduate Admissions 2026", updated.Name)
	assert.True(t, updated.IsActive, "activation state survives updates")
}

func TestRegistry_Update_NotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Update(t.Context(), "missing", draftWorkflow("undergraduate"), nil)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRegistry_Duplicate(t *testing.T) {
	registry, _ := newTestRegistry(t)

	source, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)
	require.NoError(t, registry.Activate(t.Context(), source.ID, nil))

	duplicate, err := registry.Duplicate(t.Context(), source.ID, "Undergraduate Admissions v2", &models.Actor{ID: "admin-1"})
	require.NoError(t, err)

	assert.NotEqual(t, source.ID, duplicate.ID)
	assert.False(t, duplicate.IsActive, "duplicates start inactive")
	assert.Equal(t, source.ApplicationType, duplicate.ApplicationType)
	require.Len(t, duplicate.Stages, len(source.Stages))
	require.Len(t, duplicate.Transitions, len(source.Transitions))

	// Stage and transition IDs are fresh; endpoints are remapped onto the copies.
	copiedStageIDs := make(map[string]bool, len(duplicate.Stages))
	for i, stage := range duplicate.Stages {
		assert.NotEqual(t, source.Stages[i].ID, stage.ID)
		assert.Equal(t, duplicate.ID, stage.WorkflowID)
		copiedStageIDs[stage.ID] = true
	}

	for i, transition := range duplicate.Transitions {
		assert.NotEqual(t, source.Transitions[i].ID, transition.ID)
		assert.True(t, copiedStageIDs[transition.SourceStageID])
		assert.True(t, copiedStageIDs[transition.TargetStageID])

		// Guards and permission sets carry over verbatim.
		assert.Equal(t, source.Transitions[i].Conditions, transition.Conditions)
		assert.Equal(t, source.Transitions[i].RequiredPermissions, transition.RequiredPermissions)
	}
}

func TestRegistry_Duplicate_RejectsInvalidName(t *testing.T) {
	registry, store := newTestRegistry(t)

	source, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	_, err = registry.Duplicate(t.Context(), source.ID, "v2", nil)
	require.True(t, IsValidationError(err))

	all, err := store.WorkflowRepository().GetAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, all, 1, "a rejected duplicate must not be persisted")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, eventbus.Event) error {
	return errors.New("broker unavailable")
}

func TestRegistry_Activate_SurvivesPublishFailure(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(store, failingPublisher{}, logger)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	// Event delivery failure never affects the committed activation.
	require.NoError(t, registry.Activate(t.Context(), created.ID, nil))

	active, err := registry.GetActiveWorkflow(t.Context(), "undergraduate")
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)
}

func TestRegistry_Delete(t *testing.T) {
	registry, _ := newTestRegistry(t)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	require.NoError(t, registry.Delete(t.Context(), created.ID, nil))

	_, err = registry.FetchByID(t.Context(), created.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRegistry_Delete_RejectedWhenHistoryReferencesStages(t *testing.T) {
	registry, store := newTestRegistry(t)

	created, err := registry.Create(t.Context(), draftWorkflow("undergraduate"), nil)
	require.NoError(t, err)

	entry := &models.StatusEntry{
		ID:            "entry-1",
		ApplicationID: "app-1",
		StageID:       created.Stages[0].ID,
		StageName:     created.Stages[0].Name,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.StatusRepository().Append(t.Context(), entry, ""))

	err = registry.Delete(t.Context(), created.ID, nil)
	require.True(t, IsConflictError(err))
	assert.ErrorIs(t, err, ErrWorkflowInUse)
}

func TestRegistry_ImportDefinition(t *testing.T) {
	registry, _ := newTestRegistry(t)

	raw := []byte(`{
		"name": "Transfer Admissions",
		"application_type": "transfer",
		"stages": [
			{"id": "submitted", "name": "Submitted", "sequence": 1},
			{"id": "decision", "name": "Decision", "sequence": 2, "is_terminal": true}
		],
		"transitions": [
			{
				"name": "Decide",
				"source_stage_id": "submitted",
				"target_stage_id": "decision",
				"conditions": [
					{"field": "application_fee_paid", "operator": "==", "value": true}
				]
			}
		]
	}`)

	created, err := registry.ImportDefinition(t.Context(), raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "Transfer Admissions", created.Name)
	assert.False(t, created.IsActive)
	require.Len(t, created.Transitions, 1)
	assert.Equal(t, models.OpEqual, created.Transitions[0].Conditions[0].Operator)
}

func TestRegistry_ImportDefinition_SchemaViolations(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.ImportDefinition(t.Context(), []byte(`{"name": "No stages"}`), nil)
	require.ErrorIs(t, err, ErrDefinitionSchema)

	_, err = registry.ImportDefinition(t.Context(), []byte(`{
		"name": "Bad operator",
		"application_type": "transfer",
		"stages": [{"name": "Submitted", "sequence": 1}],
		"transitions": [{
			"name": "Decide",
			"source_stage_id": "a",
			"target_stage_id": "b",
			"conditions": [{"field": "gpa", "operator": "~="}]
		}]
	}`), nil)
	require.ErrorIs(t, err, ErrDefinitionSchema)
}
