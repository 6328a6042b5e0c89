package models

// Actor identifies the user performing a manual transition or registry operation.
// Automatic transitions carry no actor (nil).
type Actor struct {
	ID   string `json:"id"   validate:"required"`
	Name string `json:"name"`
}
