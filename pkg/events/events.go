// Package events defines event types and structures for admissions workflow
// lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Kafka topics.
const Topic = "admitio.events" // Topic for workflow and application events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowActivatedEvent   EventType = "workflow.activated"
	WorkflowDeactivatedEvent EventType = "workflow.deactivated"

	// Application progression events.
	StageEnteredEvent EventType = "application.stage.entered"

	// Fact change events published by external collaborators; the automatic
	// transition scanner reacts to these between periodic scans.
	DocumentVerifiedEvent EventType = "application.document.verified"
	FeePaidEvent          EventType = "application.fee.paid"
	FactsUpdatedEvent     EventType = "application.facts.updated"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowActivated is emitted after an activation commit. Any previously active
// workflow of the same application type was deactivated in the same transaction.
type WorkflowActivated struct {
	BaseEvent

	WorkflowID      string `json:"workflow_id"`
	ApplicationType string `json:"application_type"`
	ActorID         string `json:"actor_id,omitempty"`
}

func (w WorkflowActivated) GetType() EventType {
	return WorkflowActivatedEvent
}

// WorkflowDeactivated is emitted after a workflow is explicitly deactivated.
type WorkflowDeactivated struct {
	BaseEvent

	WorkflowID      string `json:"workflow_id"`
	ApplicationType string `json:"application_type"`
	ActorID         string `json:"actor_id,omitempty"`
}

func (w WorkflowDeactivated) GetType() EventType {
	return WorkflowDeactivatedEvent
}

// StageEntered is emitted after a transition commit. It carries the entered stage's
// notification triggers so the external notification dispatcher can act on them;
// the workflow core never sends notifications itself.
type StageEntered struct {
	BaseEvent

	ApplicationID        string   `json:"application_id"`
	WorkflowID           string   `json:"workflow_id"`
	TransitionID         string   `json:"transition_id"`
	StageID              string   `json:"stage_id"`
	StageName            string   `json:"stage_name"`
	StatusEntryID        string   `json:"status_entry_id"`
	NotificationTriggers []string `json:"notification_triggers,omitempty"`
	Automatic            bool     `json:"automatic"`
	ActorID              string   `json:"actor_id,omitempty"`
}

func (s StageEntered) GetType() EventType {
	return StageEnteredEvent
}

// DocumentVerified signals that an application document passed verification.
type DocumentVerified struct {
	BaseEvent

	ApplicationID string `json:"application_id"`
	DocumentType  string `json:"document_type,omitempty"`
}

func (d DocumentVerified) GetType() EventType {
	return DocumentVerifiedEvent
}

// FeePaid signals that the application fee was captured.
type FeePaid struct {
	BaseEvent

	ApplicationID string `json:"application_id"`
}

func (f FeePaid) GetType() EventType {
	return FeePaidEvent
}

// FactsUpdated is the generic fact-change signal for custom fields.
type FactsUpdated struct {
	BaseEvent

	ApplicationID string   `json:"application_id"`
	Fields        []string `json:"fields,omitempty"`
}

func (f FactsUpdated) GetType() EventType {
	return FactsUpdatedEvent
}
