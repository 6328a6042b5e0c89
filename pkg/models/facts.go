package models

// FactSnapshot is the set of named values derived from an application at a point in
// time, consumed by condition evaluation. A field absent from the snapshot never
// satisfies a condition.
type FactSnapshot map[string]any

// Well-known fact fields supplied by the application collaborator. Institutions may
// add arbitrary custom_field_* keys on top of these.
const (
	FactDocumentsVerified = "documents_verified"
	FactFeePaid           = "application_fee_paid"
	FactGPA               = "gpa"
	FactTestScore         = "test_score"
	FactDaysInStage       = "days_in_stage"
)
