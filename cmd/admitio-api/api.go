// Package main provides the Admitio API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/admitio/pkg/eventbus"
	"github.com/dukex/admitio/pkg/facts"
	"github.com/dukex/admitio/pkg/locks"
	"github.com/dukex/admitio/pkg/permissions"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/dukex/admitio/pkg/services"
	"github.com/dukex/admitio/pkg/web"
	"github.com/dukex/admitio/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	facts       facts.Provider
	permissions permissions.Checker
	locker      locks.Locker
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	factsProvider facts.Provider,
	checker permissions.Checker,
	locker locks.Locker,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		facts:       factsProvider,
		permissions: checker,
		locker:      locker,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) *fiber.App {
	registry := services.NewRegistry(a.persistence, a.eventBus, a.logger)
	executor := workflow.NewExecutor(
		a.persistence,
		facts.WithStageAge(a.facts, a.persistence.StatusRepository()),
		a.permissions,
		a.locker,
		a.eventBus,
		a.tracer,
		a.logger,
	)

	handlers := web.NewAPIHandlers(registry, executor, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Admitio API")
	})

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

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App(ctx)

	return app.Listen(":" + strconv.Itoa(port))
}
