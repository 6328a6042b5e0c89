package web

import (
	"errors"

	"github.com/dukex/admitio/pkg/conditions"
	"github.com/dukex/admitio/pkg/locks"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/dukex/admitio/pkg/services"
	"github.com/dukex/admitio/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// Problem variants carrying the typed errors' structured context alongside the
// RFC-7807 members, so clients can render field-level detail.
type requirementsProblem struct {
	problems.Problem

	Missing []conditions.FailedCondition `json:"missing"`
}

type permissionProblem struct {
	problems.Problem

	RequiredPermissions []string `json:"required_permissions"`
}

type conflictProblem struct {
	problems.Problem

	CurrentStage  string `json:"current_stage,omitempty"`
	ExpectedStage string `json:"expected_stage,omitempty"`
}

type validationProblem struct {
	problems.Problem

	Issues []string `json:"issues"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps typed domain errors onto RFC-7807 problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	var (
		requirementsErr *workflow.StageRequirementsNotMetError
		permissionErr   *workflow.PermissionDeniedError
		transitionErr   *workflow.InvalidTransitionError
		validationErr   *services.WorkflowValidationError
	)

	switch {
	case errors.As(err, &requirementsErr):
		problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
			WithInstance(c.Path()).
			WithType(requirementsErr.Code()).
			WithDetail(requirementsErr.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(requirementsProblem{
			Problem: *problem,
			Missing: requirementsErr.Missing,
		})

	case errors.As(err, &permissionErr):
		problem := problems.NewStatusProblem(fiber.StatusForbidden).
			WithInstance(c.Path()).
			WithType(permissionErr.Code()).
			WithDetail(permissionErr.Error())

		return c.Status(fiber.StatusForbidden).JSON(permissionProblem{
			Problem:             *problem,
			RequiredPermissions: permissionErr.Required,
		})

	case errors.As(err, &transitionErr):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType(transitionErr.Code()).
			WithDetail(transitionErr.Error())

		return c.Status(fiber.StatusConflict).JSON(conflictProblem{
			Problem:       *problem,
			CurrentStage:  transitionErr.CurrentStage,
			ExpectedStage: transitionErr.ExpectedStage,
		})

	case errors.As(err, &validationErr):
		problem := problems.NewStatusProblem(fiber.StatusBadRequest).
			WithInstance(c.Path()).
			WithType(validationErr.Code()).
			WithDetail(validationErr.Error())

		return c.Status(fiber.StatusBadRequest).JSON(validationProblem{
			Problem: *problem,
			Issues:  validationErr.Issues,
		})

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType(conflictCode(err)).
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrWorkflowNotFound) || persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsActiveWorkflowNotFound(err):
		return notFound(c, "no active workflow for application type")

	case errors.Is(err, workflow.ErrNoStatusHistory):
		return notFound(c, "application has no status history")

	case errors.Is(err, locks.ErrNotAcquired):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("lock_timeout").
			WithDetail("application is busy, retry the transition")

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func conflictCode(err error) string {
	if errors.Is(err, services.ErrActiveWorkflowModification) {
		return services.CodeActiveWorkflowModification
	}

	return services.CodeWorkflowInUse
}
