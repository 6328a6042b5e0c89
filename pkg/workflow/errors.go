// Package workflow implements the transition executor: the only component allowed
// to advance an application's current stage.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/admitio/pkg/conditions"
)

// Sentinel errors for errors.Is matching. The typed errors below carry the
// structured context callers render.
var (
	ErrInvalidTransition       = errors.New("transition source does not match current stage")
	ErrStageRequirementsNotMet = errors.New("transition conditions not satisfied")
	ErrPermissionDenied        = errors.New("actor lacks required permissions")
	ErrNoStatusHistory         = errors.New("application has no status history")
)

// Error codes, stable across releases; callers key rendering off these.
const (
	CodeInvalidTransition       = "invalid_transition"
	CodeStageRequirementsNotMet = "stage_requirements_not_met"
	CodePermissionDenied        = "permission_denied"
)

// InvalidTransitionError indicates the transition's source stage no longer matches
// the application's current stage. Conflict marks losses of a concurrent execution
// race observed at commit time rather than at the initial read.
type InvalidTransitionError struct {
	ApplicationID string `json:"application_id"`
	TransitionID  string `json:"transition_id"`
	ExpectedStage string `json:"expected_stage"`
	CurrentStage  string `json:"current_stage"`
	Conflict      bool   `json:"conflict"`
}

func (e *InvalidTransitionError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("transition %s lost a concurrent execution race for application %s: current stage is %s, expected %s",
			e.TransitionID, e.ApplicationID, e.CurrentStage, e.ExpectedStage)
	}

	return fmt.Sprintf("transition %s does not apply to application %s: current stage is %s, expected %s",
		e.TransitionID, e.ApplicationID, e.CurrentStage, e.ExpectedStage)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (e *InvalidTransitionError) Code() string {
	return CodeInvalidTransition
}

// StageRequirementsNotMetError indicates one or more transition conditions failed
// against the application's current facts. Missing lists each failed condition with
// the expected and actual values.
type StageRequirementsNotMetError struct {
	ApplicationID string                       `json:"application_id"`
	TransitionID  string                       `json:"transition_id"`
	Missing       []conditions.FailedCondition `json:"missing"`
}

func (e *StageRequirementsNotMetError) Error() string {
	fields := make([]string, 0, len(e.Missing))
	for _, failed := range e.Missing {
		fields = append(fields, failed.Field)
	}

	return fmt.Sprintf("transition %s requirements not met for application %s: %s",
		e.TransitionID, e.ApplicationID, strings.Join(fields, ", "))
}

func (e *StageRequirementsNotMetError) Is(target error) bool {
	return target == ErrStageRequirementsNotMet
}

func (e *StageRequirementsNotMetError) Code() string {
	return CodeStageRequirementsNotMet
}

// PermissionDeniedError indicates the acting user lacks at least one permission the
// transition requires. Required carries the full set for caller-side rendering.
type PermissionDeniedError struct {
	ActorID      string   `json:"actor_id"`
	TransitionID string   `json:"transition_id"`
	Required     []string `json:"required_permissions"`
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("actor %s lacks permissions for transition %s: requires %s",
		e.ActorID, e.TransitionID, strings.Join(e.Required, ", "))
}

func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

func (e *PermissionDeniedError) Code() string {
	return CodePermissionDenied
}

// IsInvalidTransition checks if an error indicates a source stage mismatch or lost race.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsStageRequirementsNotMet checks if an error indicates failed transition conditions.
func IsStageRequirementsNotMet(err error) bool {
	return errors.Is(err, ErrStageRequirementsNotMet)
}

// IsPermissionDenied checks if an error indicates missing actor permissions.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
