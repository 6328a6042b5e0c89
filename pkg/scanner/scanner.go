// Package scanner drives automatic transitions: it finds applications whose
// automatic transitions' conditions have newly become true and executes them with
// no actor.
package scanner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/admitio/pkg/eventbus"
	"github.com/dukex/admitio/pkg/events"
	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/dukex/admitio/pkg/workflow"
	"github.com/robfig/cron/v3"
)

// Scanner runs a periodic sweep over all applications sitting at stages with
// automatic outgoing transitions, and reacts between sweeps to fact-change events
// (document verified, fee paid). Failed requirements and lost races are expected
// "not yet" outcomes, never errors.
type Scanner struct {
	id          string
	executor    *workflow.Executor
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	cron        *cron.Cron
	logger      *slog.Logger
}

func NewScanner(
	id string,
	executor *workflow.Executor,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		id:          id,
		executor:    executor,
		persistence: persistence,
		eventBus:    eventBus,
		cron:        cron.New(),
		logger:      logger.With("module", "scanner", "scanner_id", id),
	}
}

// Start schedules the periodic scan and subscribes to fact-change events. Blocks
// until the context is cancelled.
func (s *Scanner) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		err := s.Scan(ctx)
		if err != nil {
			s.logger.Error("Periodic scan failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", schedule, err)
	}

	if s.eventBus != nil {
		s.registerEventHandlers()

		err = s.eventBus.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to events: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scanner started", "schedule", schedule)

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("Scanner stopped")

	return nil
}

func (s *Scanner) registerEventHandlers() {
	_ = s.eventBus.Handle(events.DocumentVerifiedEvent, func(ctx context.Context, event interface{}) error {
		if e, ok := event.(*events.DocumentVerified); ok {
			s.ScanApplication(ctx, e.ApplicationID)
		}

		return nil
	})

	_ = s.eventBus.Handle(events.FeePaidEvent, func(ctx context.Context, event interface{}) error {
		if e, ok := event.(*events.FeePaid); ok {
			s.ScanApplication(ctx, e.ApplicationID)
		}

		return nil
	})

	_ = s.eventBus.Handle(events.FactsUpdatedEvent, func(ctx context.Context, event interface{}) error {
		if e, ok := event.(*events.FactsUpdated); ok {
			s.ScanApplication(ctx, e.ApplicationID)
		}

		return nil
	})
}

// Scan sweeps every application currently sitting at a stage with at least one
// automatic outgoing transition.
func (s *Scanner) Scan(ctx context.Context) error {
	workflows, err := s.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	for _, wf := range workflows {
		if !wf.IsActive {
			continue
		}

		stageIDs := automaticSourceStages(wf)
		if len(stageIDs) == 0 {
			continue
		}

		entries, err := s.persistence.StatusRepository().CurrentAtStages(ctx, stageIDs)
		if err != nil {
			return fmt.Errorf("failed to list applications for workflow %s: %w", wf.ID, err)
		}

		for _, entry := range entries {
			s.ScanApplication(ctx, entry.ApplicationID)
		}
	}

	return nil
}

// ScanApplication evaluates the application's automatic transitions and executes
// the first one whose conditions hold. Transition IDs order the candidates, so the
// choice is deterministic when several could fire.
func (s *Scanner) ScanApplication(ctx context.Context, applicationID string) {
	available, err := s.executor.GetAvailableTransitions(ctx, applicationID, nil)
	if err != nil {
		s.logger.Error("Failed to list transitions", "application_id", applicationID, "error", err)

		return
	}

	for _, transition := range available {
		if !transition.IsAutomatic {
			continue
		}

		_, err := s.executor.ExecuteTransition(ctx, applicationID, transition.ID, nil, workflow.ExecutionContext{})
		if err != nil {
			// Requirements that stopped holding between evaluation and commit, and
			// races lost to a concurrent manual transition, resolve on a later scan.
			if workflow.IsStageRequirementsNotMet(err) || workflow.IsInvalidTransition(err) {
				s.logger.Debug("Automatic transition not ready",
					"application_id", applicationID,
					"transition_id", transition.ID,
					"error", err,
				)

				return
			}

			s.logger.Error("Automatic transition failed",
				"application_id", applicationID,
				"transition_id", transition.ID,
				"error", err,
			)

			return
		}

		s.logger.Info("Automatic transition executed",
			"application_id", applicationID,
			"transition_id", transition.ID,
		)

		return
	}
}

// automaticSourceStages returns the IDs of stages with at least one automatic
// outgoing transition.
func automaticSourceStages(wf *models.Workflow) []string {
	seen := make(map[string]bool)
	stageIDs := make([]string, 0)

	for _, transition := range wf.Transitions {
		if transition.IsAutomatic && !seen[transition.SourceStageID] {
			seen[transition.SourceStageID] = true

			stageIDs = append(stageIDs, transition.SourceStageID)
		}
	}

	return stageIDs
}
