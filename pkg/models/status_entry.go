package models

import "time"

// StatusEntry is an immutable audit record marking an application's entry into a
// stage. Entries are append-only and written solely by the transition executor; the
// application's current stage is the stage of its most recent entry (by CreatedAt,
// ties broken by ID).
type StatusEntry struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id" validate:"required"`
	StageID       string    `json:"stage_id"       validate:"required"`
	StageName     string    `json:"stage_name"`
	Label         string    `json:"label"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"` // empty for automatic transitions
	CreatedAt     time.Time `json:"created_at"`
}

// Latest returns the most recent entry of an ordered-or-unordered history, or nil
// for an empty history. CreatedAt wins; equal timestamps fall back to entry ID so
// the choice is deterministic.
func Latest(history []*StatusEntry) *StatusEntry {
	var latest *StatusEntry

	for _, entry := range history {
		if latest == nil {
			latest = entry

			continue
		}

		if entry.CreatedAt.After(latest.CreatedAt) {
			latest = entry
		} else if entry.CreatedAt.Equal(latest.CreatedAt) && entry.ID > latest.ID {
			latest = entry
		}
	}

	return latest
}
