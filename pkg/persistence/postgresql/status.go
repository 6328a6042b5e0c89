package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
	"github.com/lib/pq"
)

// StatusRepository handles the append-only status-entry stream.
type StatusRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStatusRepository creates a new status repository.
func NewStatusRepository(db *sql.DB, logger *slog.Logger) *StatusRepository {
	return &StatusRepository{db: db, logger: logger}
}

const statusColumns = `
	id
  , application_id
  , stage_id
  , stage_name
  , label
  , notes
  , created_by
  , created_at
`

// History returns the application's status entries ordered oldest first.
func (r *StatusRepository) History(ctx context.Context, applicationID string) ([]*models.StatusEntry, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM status_entries
		WHERE application_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.StatusEntry, 0)

	for rows.Next() {
		entry, err := scanStatusEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating status entries: %w", err)
	}

	return entries, nil
}

// Append inserts the entry only if the application's current stage still matches
// expectedStageID. A transaction-scoped advisory lock on the application ID
// serializes concurrent appends; the loser observes the new latest entry and fails
// with ErrStaleCurrentStage.
func (r *StatusRepository) Append(ctx context.Context, entry *models.StatusEntry, expectedStageID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.ApplicationID)
	if err != nil {
		return fmt.Errorf("failed to lock application stream: %w", err)
	}

	var currentStageID sql.NullString

	err = tx.QueryRowContext(ctx, `
		SELECT stage_id
		FROM status_entries
		WHERE application_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, entry.ApplicationID).Scan(&currentStageID)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read current stage: %w", err)
	}

	current := ""
	if currentStageID.Valid {
		current = currentStageID.String
	}

	if current != expectedStageID {
		err = persistence.NewStatusError("Append", entry.ApplicationID, persistence.ErrStaleCurrentStage)

		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_entries (id, application_id, stage_id, stage_name, label, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.ID,
		entry.ApplicationID,
		entry.StageID,
		entry.StageName,
		entry.Label,
		entry.Notes,
		entry.CreatedBy,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status entry: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit status entry: %w", err)
	}

	return nil
}

// CurrentAtStages returns the latest entry of every application currently at one of
// the given stages.
func (r *StatusRepository) CurrentAtStages(ctx context.Context, stageIDs []string) ([]*models.StatusEntry, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM (
			SELECT DISTINCT ON (application_id) ` + statusColumns + `
			FROM status_entries
			ORDER BY application_id, created_at DESC, id DESC
		) latest
		WHERE latest.stage_id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(stageIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query applications at stages: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.StatusEntry, 0)

	for rows.Next() {
		entry, err := scanStatusEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating status entries: %w", err)
	}

	return entries, nil
}

// StageReferenced reports whether any application's history references a stage of
// the given workflow.
func (r *StatusRepository) StageReferenced(ctx context.Context, workflowID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM status_entries se
			WHERE se.stage_id IN (
				SELECT stage->>'id'
				FROM workflows w, jsonb_array_elements(w.stages) stage
				WHERE w.id = $1
			)
		)
	`

	var referenced bool

	err := r.db.QueryRowContext(ctx, query, workflowID).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("failed to check stage references: %w", err)
	}

	return referenced, nil
}

func scanStatusEntry(row rowScanner) (*models.StatusEntry, error) {
	var entry models.StatusEntry

	err := row.Scan(
		&entry.ID,
		&entry.ApplicationID,
		&entry.StageID,
		&entry.StageName,
		&entry.Label,
		&entry.Notes,
		&entry.CreatedBy,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}
