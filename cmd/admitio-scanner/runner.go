package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/admitio/pkg/scanner"
)

// Runner wraps the scanner with signal handling for graceful shutdown.
type Runner struct {
	scanner  *scanner.Scanner
	schedule string
	logger   *slog.Logger
}

func NewRunner(scanner *scanner.Scanner, schedule string, logger *slog.Logger) *Runner {
	return &Runner{
		scanner:  scanner,
		schedule: schedule,
		logger:   logger,
	}
}

// Run starts the scanner and blocks until the context is cancelled or a
// termination signal arrives.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		r.logger.Info("Received signal, shutting down gracefully", "signal", sig)
		cancel()
	}()

	return r.scanner.Start(runCtx, r.schedule)
}
