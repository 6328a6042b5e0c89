package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/admitio/pkg/facts"
	"github.com/dukex/admitio/pkg/locks"
	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/permissions"
	"github.com/dukex/admitio/pkg/persistence/file"
	"github.com/dukex/admitio/pkg/services"
	"github.com/dukex/admitio/pkg/web"
	"github.com/dukex/admitio/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type testEnv struct {
	app      *fiber.App
	registry *services.Registry
	facts    *facts.StaticProvider
	executor *workflow.Executor
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	provider := facts.NewStaticProvider()

	checker := permissions.NewStaticChecker(map[string][]string{
		"reviewer-1": {"review_application"},
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	executor := workflow.NewExecutor(
		store,
		provider,
		checker,
		locks.NewKeyedMutex(),
		nil,
		noop.NewTracerProvider().Tracer("test"),
		logger,
	)

	registry := services.NewRegistry(store, nil, logger)
	handlers := web.NewAPIHandlers(registry, executor, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/import", handlers.ImportWorkflow)
	w.Get("/active", handlers.GetActiveWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Post("/:id/duplicate", handlers.DuplicateWorkflow)
	w.Get("/:id/validation", handlers.ValidateWorkflow)

	apps := app.Group("/applications")
	apps.Post("/:id/initialize", handlers.InitializeApplication)
	apps.Get("/:id/stage", handlers.GetCurrentStage)
	apps.Get("/:id/history", handlers.GetStatusHistory)
	apps.Get("/:id/requirements", handlers.GetStageRequirements)
	apps.Get("/:id/transitions", handlers.GetAvailableTransitions)
	apps.Post("/:id/transitions/:transitionId/execute", handlers.ExecuteTransition)

	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, registry: registry, facts: provider, executor: executor}
}

func (env *testEnv) createAndActivate(t *testing.T) *models.Workflow {
	t.Helper()

	created, err := env.registry.Create(t.Context(), &models.Workflow{
		Name:            "Undergraduate Admissions",
		ApplicationType: "undergraduate",
		Stages: []*models.Stage{
			{ID: "submitted", Name: "Submitted", Sequence: 1},
			{ID: "review", Name: "Under Review", Sequence: 2, IsTerminal: true},
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
		},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, env.registry.Activate(t.Context(), created.ID, nil))

	return created
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer

	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestCreateWorkflow(t *testing.T) {
	env := setupTestApp(t)

	req := jsonRequest(http.MethodPost, "/workflows", web.CreateWorkflowRequest{
		Name:            "Graduate Admissions",
		ApplicationType: "graduate",
		Stages: []*models.Stage{
			{Name: "Submitted", Sequence: 1, IsTerminal: true},
		},
	})
	req.Header.Set("X-Actor-ID", "admin-1")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsActive)
	assert.Equal(t, "admin-1", created.CreatedBy)
}

func TestCreateWorkflow_ValidationProblem(t *testing.T) {
	env := setupTestApp(t)

	req := jsonRequest(http.MethodPost, "/workflows", web.CreateWorkflowRequest{
		Name:            "Bad Workflow",
		ApplicationType: "graduate",
		Transitions: []*models.Transition{
			{
				Name:                "Ghost",
				SourceStageID:       "nowhere",
				TargetStageID:       "elsewhere",
				IsAutomatic:         true,
				RequiredPermissions: []string{"review_application"},
			},
		},
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "workflow_validation", problem["type"])
	assert.NotEmpty(t, problem["issues"])
}

func TestGetWorkflow_NotFound(t *testing.T) {
	env := setupTestApp(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "not_found", problem["type"])
}

func TestGetActiveWorkflow(t *testing.T) {
	env := setupTestApp(t)
	created := env.createAndActivate(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/active?application_type=undergraduate", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var active models.Workflow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
	assert.Equal(t, created.ID, active.ID)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/active?application_type=graduate", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/active", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateWorkflow_ActiveStructuralConflict(t *testing.T) {
	env := setupTestApp(t)
	created := env.createAndActivate(t)

	req := jsonRequest(http.MethodPatch, "/workflows/"+created.ID, web.UpdateWorkflowRequest{
		Stages: []*models.Stage{
			{Name: "Submitted", Sequence: 1, IsTerminal: true},
		},
	})

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var problem map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "active_workflow_modification", problem["type"])
}

func TestExecuteTransition_FullFlow(t *testing.T) {
	env := setupTestApp(t)
	env.createAndActivate(t)
	env.facts.Register("app-1", "undergraduate", models.FactSnapshot{})

	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, "/applications/app-1/initialize", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Fee unpaid: requirements problem with the failed conditions attached.
	req := jsonRequest(http.MethodPost, "/applications/app-1/transitions/t-begin-review/execute", nil)
	req.Header.Set("X-Actor-ID", "reviewer-1")

	resp, err = env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var problem map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "stage_requirements_not_met", problem["type"])
	assert.NotEmpty(t, problem["missing"])

	env.facts.SetFact("app-1", models.FactFeePaid, true)

	// Wrong actor: permission problem.
	req = jsonRequest(http.MethodPost, "/applications/app-1/transitions/t-begin-review/execute", nil)
	req.Header.Set("X-Actor-ID", "stranger")

	resp, err = env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Right actor: the transition commits.
	req = jsonRequest(http.MethodPost, "/applications/app-1/transitions/t-begin-review/execute",
		web.ExecuteTransitionRequest{Notes: "looks complete"})
	req.Header.Set("X-Actor-ID", "reviewer-1")

	resp, err = env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var executed web.TransitionExecutedResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&executed))
	assert.Equal(t, "review", executed.Entry.StageID)
	assert.Equal(t, "looks complete", executed.Entry.Notes)

	// Replay: conflict problem.
	req = jsonRequest(http.MethodPost, "/applications/app-1/transitions/t-begin-review/execute", nil)
	req.Header.Set("X-Actor-ID", "reviewer-1")

	resp, err = env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The audit trail shows both stages.
	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/applications/app-1/history", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var history struct {
		Entries []*models.StatusEntry `json:"entries"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Len(t, history.Entries, 2)
}

func TestGetCurrentStage_NoHistory(t *testing.T) {
	env := setupTestApp(t)
	env.createAndActivate(t)
	env.facts.Register("app-1", "undergraduate", models.FactSnapshot{})

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/applications/app-1/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestApp(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health web.HealthResponse

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
}
