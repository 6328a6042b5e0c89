// Package models defines the core domain models for admissions workflow processing.
package models

import (
	"sort"
	"time"
)

// Workflow represents an institution-defined admissions process: an ordered set of
// stages plus the guarded transitions between them, bound to one application type.
type Workflow struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"             validate:"required,min=3"`
	Description     string        `json:"description"`
	ApplicationType string        `json:"application_type" validate:"required"`
	IsActive        bool          `json:"is_active"`
	Stages          []*Stage      `json:"stages"`
	Transitions     []*Transition `json:"transitions"`
	CreatedBy       string        `json:"created_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty"`
}

// StageByID returns the stage with the given ID, or nil.
func (w *Workflow) StageByID(id string) *Stage {
	for _, stage := range w.Stages {
		if stage.ID == id {
			return stage
		}
	}

	return nil
}

// TransitionByID returns the transition with the given ID, or nil.
func (w *Workflow) TransitionByID(id string) *Transition {
	for _, transition := range w.Transitions {
		if transition.ID == id {
			return transition
		}
	}

	return nil
}

// TransitionsFrom returns all transitions whose source is the given stage,
// ordered by transition ID so callers observe a stable firing order.
func (w *Workflow) TransitionsFrom(stageID string) []*Transition {
	transitions := make([]*Transition, 0)

	for _, transition := range w.Transitions {
		if transition.SourceStageID == stageID {
			transitions = append(transitions, transition)
		}
	}

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].ID < transitions[j].ID
	})

	return transitions
}
