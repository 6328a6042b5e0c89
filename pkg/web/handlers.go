package web

import (
	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/services"
	"github.com/dukex/admitio/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	registry  *services.Registry
	executor  *workflow.Executor
	validator *validator.Validate
}

func NewAPIHandlers(
	registry *services.Registry,
	executor *workflow.Executor,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		registry:  registry,
		executor:  executor,
		validator: validator,
	}
}

// actor builds the acting user from request headers. Registry operations and
// manual transitions require it; a missing header means an anonymous call and the
// permission layer decides what that is allowed to do.
func actor(c fiber.Ctx) *models.Actor {
	id := c.Get("X-Actor-ID")
	if id == "" {
		return nil
	}

	return &models.Actor{
		ID:   id,
		Name: c.Get("X-Actor-Name"),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.registry.FetchAll(c.Context())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	found, err := h.registry.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(found)
}

// GetActiveWorkflow resolves the single active workflow for an application type.
func (h *APIHandlers) GetActiveWorkflow(c fiber.Ctx) error {
	applicationType := c.Query("application_type")
	if applicationType == "" {
		return badRequest(c, "application_type query parameter is required")
	}

	found, err := h.registry.GetActiveWorkflow(c.Context(), applicationType)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	created, err := h.registry.Create(c.Context(), &models.Workflow{
		Name:            req.Name,
		Description:     req.Description,
		ApplicationType: req.ApplicationType,
		Stages:          req.Stages,
		Transitions:     req.Transitions,
	}, actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	existing, err := h.registry.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Stages != nil {
		existing.Stages = req.Stages
	}

	if req.Transitions != nil {
		existing.Transitions = req.Transitions
	}

	updated, err := h.registry.Update(c.Context(), c.Params("id"), existing, actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.registry.Delete(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	err := h.registry.Activate(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	err := h.registry.Deactivate(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateWorkflow(c fiber.Ctx) error {
	var req DuplicateWorkflowRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(&req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	duplicated, err := h.registry.Duplicate(c.Context(), c.Params("id"), req.Name, actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(duplicated)
}

// ValidateWorkflow runs the structural graph checks without persisting anything.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	found, err := h.registry.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(h.registry.Validate(found))
}

// ImportWorkflow accepts a raw JSON workflow definition, validates it against the
// definition schema and creates it as an inactive workflow.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	created, err := h.registry.ImportDefinition(c.Context(), c.Body(), actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// InitializeApplication writes the application's first status entry, placing it at
// the active workflow's entry stage.
func (h *APIHandlers) InitializeApplication(c fiber.Ctx) error {
	entry, err := h.executor.Initialize(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransitionExecutedResponse{Entry: entry})
}

func (h *APIHandlers) GetCurrentStage(c fiber.Ctx) error {
	stage, err := h.executor.CurrentStage(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(stage)
}

func (h *APIHandlers) GetStatusHistory(c fiber.Ctx) error {
	history, err := h.executor.History(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"entries": history})
}

// GetAvailableTransitions lists the transitions the acting user may execute right
// now, with conditions already evaluated against fresh facts.
func (h *APIHandlers) GetAvailableTransitions(c fiber.Ctx) error {
	transitions, err := h.executor.GetAvailableTransitions(c.Context(), c.Params("id"), actor(c))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"transitions": transitions})
}

// GetStageRequirements reports the current stage's required documents and actions
// and whether the application satisfies them.
func (h *APIHandlers) GetStageRequirements(c fiber.Ctx) error {
	stage, err := h.executor.CurrentStage(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	requirements, err := h.executor.EvaluateStageRequirements(c.Context(), c.Params("id"), stage)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(requirements)
}

func (h *APIHandlers) ExecuteTransition(c fiber.Ctx) error {
	var req ExecuteTransitionRequest

	if len(c.Body()) > 0 {
		err := c.Bind().Body(&req)
		if err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	entry, err := h.executor.ExecuteTransition(
		c.Context(),
		c.Params("id"),
		c.Params("transitionId"),
		actor(c),
		workflow.ExecutionContext{Label: req.Label, Notes: req.Notes},
	)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransitionExecutedResponse{Entry: entry})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.registry.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status:  "unhealthy",
			Message: message,
		})
	}

	return c.JSON(HealthResponse{Status: "healthy"})
}
