package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
)

// StatusRepository stores one JSON file per application holding its append-only
// status-entry stream. The mutex makes the compare-and-append atomic.
type StatusRepository struct {
	root string
	mu   sync.Mutex
}

// NewStatusRepository creates a new status repository.
func NewStatusRepository(root string) *StatusRepository {
	return &StatusRepository{root: root}
}

func (sr *StatusRepository) dir() string {
	return filepath.Join(sr.root, "status")
}

func (sr *StatusRepository) path(applicationID string) string {
	return filepath.Join(sr.dir(), applicationID+".json")
}

// History returns the application's status entries ordered oldest first.
func (sr *StatusRepository) History(_ context.Context, applicationID string) ([]*models.StatusEntry, error) {
	entries, err := sr.read(applicationID)
	if err != nil {
		return nil, err
	}

	sortEntries(entries)

	return entries, nil
}

// Append inserts the entry only if the application's current stage still matches
// expectedStageID. The mutex spans the read and the write, so concurrent appends
// for one application cannot both succeed against the same expectation.
func (sr *StatusRepository) Append(_ context.Context, entry *models.StatusEntry, expectedStageID string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	entries, err := sr.read(entry.ApplicationID)
	if err != nil {
		return err
	}

	latest := models.Latest(entries)

	switch {
	case latest == nil && expectedStageID != "":
		return persistence.NewStatusError("Append", entry.ApplicationID, persistence.ErrStaleCurrentStage)
	case latest != nil && expectedStageID == "":
		return persistence.NewStatusError("Append", entry.ApplicationID, persistence.ErrStaleCurrentStage)
	case latest != nil && latest.StageID != expectedStageID:
		return persistence.NewStatusError("Append", entry.ApplicationID, persistence.ErrStaleCurrentStage)
	}

	for _, existing := range entries {
		if existing.ID == entry.ID {
			return persistence.NewStatusError("Append", entry.ApplicationID, persistence.ErrStatusEntryExists)
		}
	}

	entries = append(entries, entry)

	return sr.write(entry.ApplicationID, entries)
}

// CurrentAtStages returns the latest entry of every application currently at one of
// the given stages.
func (sr *StatusRepository) CurrentAtStages(ctx context.Context, stageIDs []string) ([]*models.StatusEntry, error) {
	if _, err := os.Stat(sr.dir()); os.IsNotExist(err) {
		return make([]*models.StatusEntry, 0), nil
	}

	wanted := make(map[string]bool, len(stageIDs))
	for _, stageID := range stageIDs {
		wanted[stageID] = true
	}

	root := os.DirFS(sr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list status files: %w", err)
	}

	current := make([]*models.StatusEntry, 0)

	for _, file := range jsonFiles {
		applicationID := file[:len(file)-5]

		entries, err := sr.read(applicationID)
		if err != nil {
			return nil, err
		}

		latest := models.Latest(entries)
		if latest != nil && wanted[latest.StageID] {
			current = append(current, latest)
		}
	}

	return current, nil
}

// StageReferenced reports whether any application history references a stage of the
// given workflow. Stage IDs are globally unique, so a prefix match on the workflow's
// stages suffices.
func (sr *StatusRepository) StageReferenced(ctx context.Context, workflowID string) (bool, error) {
	if _, err := os.Stat(sr.dir()); os.IsNotExist(err) {
		return false, nil
	}

	stageIDs, err := sr.workflowStageIDs(workflowID)
	if err != nil {
		return false, err
	}

	if len(stageIDs) == 0 {
		return false, nil
	}

	root := os.DirFS(sr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return false, fmt.Errorf("failed to list status files: %w", err)
	}

	for _, file := range jsonFiles {
		applicationID := file[:len(file)-5]

		entries, err := sr.read(applicationID)
		if err != nil {
			return false, err
		}

		for _, entry := range entries {
			if stageIDs[entry.StageID] {
				return true, nil
			}
		}
	}

	return false, nil
}

func (sr *StatusRepository) workflowStageIDs(workflowID string) (map[string]bool, error) {
	data, err := os.ReadFile(filepath.Join(sr.root, "workflows", workflowID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", workflowID, err)
	}

	stageIDs := make(map[string]bool, len(workflow.Stages))
	for _, stage := range workflow.Stages {
		stageIDs[stage.ID] = true
	}

	return stageIDs, nil
}

func (sr *StatusRepository) read(applicationID string) ([]*models.StatusEntry, error) {
	data, err := os.ReadFile(sr.path(applicationID))
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.StatusEntry, 0), nil
		}

		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var entries []*models.StatusEntry

	err = json.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to decode status history for %s: %w", applicationID, err)
	}

	return entries, nil
}

func (sr *StatusRepository) write(applicationID string, entries []*models.StatusEntry) error {
	err := os.MkdirAll(sr.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status history for %s: %w", applicationID, err)
	}

	err = os.WriteFile(sr.path(applicationID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}

	return nil
}

func sortEntries(entries []*models.StatusEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}

		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
