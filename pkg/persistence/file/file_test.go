package file

import (
	"testing"
	"time"

	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedWorkflow(id, applicationType string) *models.Workflow {
	return &models.Workflow{
		ID:              id,
		Name:            "Stored Workflow",
		ApplicationType: applicationType,
		Stages: []*models.Stage{
			{ID: id + "-submitted", Name: "Submitted", Sequence: 1},
			{ID: id + "-decision", Name: "Decision", Sequence: 2, IsTerminal: true},
		},
		Transitions: []*models.Transition{
			{ID: id + "-t1", SourceStageID: id + "-submitted", TargetStageID: id + "-decision", Name: "Decide"},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func entryAt(id, applicationID, stageID string, at time.Time) *models.StatusEntry {
	return &models.StatusEntry{
		ID:            id,
		ApplicationID: applicationID,
		StageID:       stageID,
		CreatedAt:     at,
	}
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.WorkflowRepository()

	require.NoError(t, repo.Save(t.Context(), storedWorkflow("wf-1", "undergraduate")))

	found, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Stored Workflow", found.Name)
	assert.Len(t, found.Stages, 2)

	missing, err := repo.GetByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWorkflowRepository_ActivateSwapsWithinType(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.WorkflowRepository()

	require.NoError(t, repo.Save(t.Context(), storedWorkflow("wf-1", "undergraduate")))
	require.NoError(t, repo.Save(t.Context(), storedWorkflow("wf-2", "undergraduate")))
	require.NoError(t, repo.Save(t.Context(), storedWorkflow("wf-3", "graduate")))

	require.NoError(t, repo.Activate(t.Context(), "wf-1"))
	require.NoError(t, repo.Activate(t.Context(), "wf-3"))
	require.NoError(t, repo.Activate(t.Context(), "wf-2"))

	active, err := repo.GetActiveByType(t.Context(), "undergraduate")
	require.NoError(t, err)
	assert.Equal(t, "wf-2", active.ID)

	first, err := repo.GetByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	// Activation in one type never touches another type's active workflow.
	graduate, err := repo.GetActiveByType(t.Context(), "graduate")
	require.NoError(t, err)
	assert.Equal(t, "wf-3", graduate.ID)
}

func TestWorkflowRepository_GetActiveByType_NoneActive(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.WorkflowRepository()

	require.NoError(t, repo.Save(t.Context(), storedWorkflow("wf-1", "undergraduate")))

	_, err := repo.GetActiveByType(t.Context(), "undergraduate")
	assert.True(t, persistence.IsActiveWorkflowNotFound(err))
}

func TestWorkflowRepository_ActivateMissingWorkflow(t *testing.T) {
	store := NewPersistence(t.TempDir())

	err := store.WorkflowRepository().Activate(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestStatusRepository_AppendAndHistoryOrder(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.StatusRepository()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(t.Context(), entryAt("e-1", "app-1", "submitted", base), ""))
	require.NoError(t, repo.Append(t.Context(), entryAt("e-2", "app-1", "review", base.Add(time.Hour)), "submitted"))
	require.NoError(t, repo.Append(t.Context(), entryAt("e-3", "app-1", "decision", base.Add(2*time.Hour)), "review"))

	history, err := repo.History(t.Context(), "app-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "submitted", history[0].StageID)
	assert.Equal(t, "decision", history[2].StageID)
}

func TestStatusRepository_AppendRejectsStaleExpectation(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.StatusRepository()

	now := time.Now().UTC()

	require.NoError(t, repo.Append(t.Context(), entryAt("e-1", "app-1", "submitted", now), ""))

	// The stream moved past "submitted" expectations held by a slow writer.
	require.NoError(t, repo.Append(t.Context(), entryAt("e-2", "app-1", "review", now.Add(time.Minute)), "submitted"))

	err := repo.Append(t.Context(), entryAt("e-3", "app-1", "review", now.Add(2*time.Minute)), "submitted")
	assert.True(t, persistence.IsStaleCurrentStage(err))

	// An empty expectation only matches an empty stream.
	err = repo.Append(t.Context(), entryAt("e-4", "app-1", "submitted", now.Add(3*time.Minute)), "")
	assert.True(t, persistence.IsStaleCurrentStage(err))

	history, err := repo.History(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStatusRepository_AppendRejectsDuplicateEntryID(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.StatusRepository()

	now := time.Now().UTC()

	require.NoError(t, repo.Append(t.Context(), entryAt("e-1", "app-1", "submitted", now), ""))

	err := repo.Append(t.Context(), entryAt("e-1", "app-1", "review", now.Add(time.Minute)), "submitted")
	assert.ErrorIs(t, err, persistence.ErrStatusEntryExists)
}

func TestStatusRepository_CurrentAtStages(t *testing.T) {
	store := NewPersistence(t.TempDir())
	repo := store.StatusRepository()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(t.Context(), entryAt("e-1", "app-1", "submitted", base), ""))
	require.NoError(t, repo.Append(t.Context(), entryAt("e-2", "app-1", "review", base.Add(time.Hour)), "submitted"))
	require.NoError(t, repo.Append(t.Context(), entryAt("e-3", "app-2", "submitted", base), ""))

	current, err := repo.CurrentAtStages(t.Context(), []string{"submitted"})
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "app-2", current[0].ApplicationID)

	current, err = repo.CurrentAtStages(t.Context(), []string{"submitted", "review"})
	require.NoError(t, err)
	assert.Len(t, current, 2)
}

func TestStatusRepository_StageReferenced(t *testing.T) {
	store := NewPersistence(t.TempDir())

	workflow := storedWorkflow("wf-1", "undergraduate")
	require.NoError(t, store.WorkflowRepository().Save(t.Context(), workflow))

	referenced, err := store.StatusRepository().StageReferenced(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.False(t, referenced)

	entry := entryAt("e-1", "app-1", workflow.Stages[0].ID, time.Now().UTC())
	require.NoError(t, store.StatusRepository().Append(t.Context(), entry, ""))

	referenced, err = store.StatusRepository().StageReferenced(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.True(t, referenced)
}

func TestPersistence_HealthCheck(t *testing.T) {
	store := NewPersistence(t.TempDir())

	assert.NoError(t, store.HealthCheck(t.Context()))
	assert.NoError(t, store.Close(t.Context()))
}
