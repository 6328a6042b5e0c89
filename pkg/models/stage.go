package models

// Stage is a named phase an application can occupy within one workflow. Sequence
// establishes display and validation order; actual reachability is defined by
// transitions, not by sequence.
type Stage struct {
	ID                   string   `json:"id"`
	WorkflowID           string   `json:"workflow_id"`
	Name                 string   `json:"name"     validate:"required,min=2"`
	Sequence             int      `json:"sequence" validate:"min=1"`
	RequiredDocuments    []string `json:"required_documents,omitempty"`
	RequiredActions      []string `json:"required_actions,omitempty"`
	NotificationTriggers []string `json:"notification_triggers,omitempty"`
	AssignedRole         string   `json:"assigned_role,omitempty"`
	IsTerminal           bool     `json:"is_terminal"`
}
