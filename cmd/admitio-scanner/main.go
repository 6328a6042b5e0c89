// Package main provides the automatic transition scanner service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/admitio/pkg/cmd"
	"github.com/dukex/admitio/pkg/facts"
	"github.com/dukex/admitio/pkg/log"
	"github.com/dukex/admitio/pkg/otelhelper"
	"github.com/dukex/admitio/pkg/permissions"
	"github.com/dukex/admitio/pkg/scanner"
	"github.com/dukex/admitio/pkg/workflow"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "admitio-scanner",
		Usage:                 "Start the automatic transition scanner",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scanner-id",
				Aliases: []string{"id"},
				Usage:   "Custom scanner ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCANNER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "records-url",
				Usage:    "Base URL of the application records service",
				Required: true,
				Sources:  cli.EnvVars("RECORDS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for distributed application locks (empty uses in-process locks)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for periodic scans",
				Value:   "*/1 * * * *",
				Sources: cli.EnvVars("SCAN_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			scannerID := command.String("scanner-id")
			if scannerID == "" {
				scannerID = fmt.Sprintf("scanner-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("admitio-scanner").With("scanner_id", scannerID)

			logger.InfoContext(ctx, "Initializing Admitio Scanner")

			tracer, err := otelhelper.NewTracer(ctx, "admitio-scanner")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			// The scanner executes automatic transitions only, which never
			// consult permissions, so an empty grant table suffices.
			executor := workflow.NewExecutor(
				persistence,
				facts.WithStageAge(
					facts.NewHTTPProvider(command.String("records-url")),
					persistence.StatusRepository(),
				),
				permissions.NewStaticChecker(nil),
				cmd.NewLocker(command.String("redis-url")),
				eventBus,
				tracer,
				logger,
			)

			runner := NewRunner(
				scanner.NewScanner(scannerID, executor, persistence, eventBus, logger),
				command.String("schedule"),
				logger,
			)

			return runner.Run(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
