package models

// Operator is a comparison operator usable in a transition condition.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
)

// Valid reports whether the operator is one of the supported comparisons.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		return true
	default:
		return false
	}
}

// Condition is a single guard clause over a named application fact. Conditions on a
// transition combine with AND semantics; an empty list is always satisfiable.
type Condition struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required"`
	Value    any      `json:"value"`
}

// Transition is a directed, conditionally guarded edge between two stages of the
// same workflow. Manual transitions may require permissions; automatic transitions
// have no human actor and must carry an empty permission set.
type Transition struct {
	ID                  string      `json:"id"`
	WorkflowID          string      `json:"workflow_id"`
	SourceStageID       string      `json:"source_stage_id" validate:"required"`
	TargetStageID       string      `json:"target_stage_id" validate:"required"`
	Name                string      `json:"name"            validate:"required,min=2"`
	Conditions          []Condition `json:"conditions,omitempty"`
	RequiredPermissions []string    `json:"required_permissions,omitempty"`
	IsAutomatic         bool        `json:"is_automatic"`
}
