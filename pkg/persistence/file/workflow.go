package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations. A single mutex
// serializes writes so the activation swap stays atomic.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.dir(), id+".json")
}

// GetAll returns every stored workflow.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	if _, err := os.Stat(wr.dir()); os.IsNotExist(err) {
		return make([]*models.Workflow, 0), nil
	}

	root := os.DirFS(wr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := file[:len(file)-5] // Remove .json extension

		workflow, err := wr.GetByID(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

// GetByID returns a workflow by ID, or nil when it does not exist.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	data, err := os.ReadFile(wr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	if workflow.DeletedAt != nil {
		return nil, nil
	}

	return &workflow, nil
}

// GetActiveByType returns the single active workflow for an application type.
func (wr *WorkflowRepository) GetActiveByType(ctx context.Context, applicationType string) (*models.Workflow, error) {
	workflows, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if workflow.IsActive && workflow.ApplicationType == applicationType {
			return workflow, nil
		}
	}

	return nil, persistence.NewWorkflowError("GetActiveByType", applicationType, persistence.ErrActiveWorkflowNotFound)
}

// Save writes the workflow to disk.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.write(workflow)
}

// Delete removes the workflow file.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete workflow file: %w", err)
	}

	return nil
}

// Activate flips the workflow active and every other workflow of the same
// application type inactive, under one lock so readers never observe two active
// workflows of one type.
func (wr *WorkflowRepository) Activate(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	target, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if target == nil {
		return persistence.NewWorkflowError("Activate", id, persistence.ErrWorkflowNotFound)
	}

	workflows, err := wr.GetAll(ctx)
	if err != nil {
		return err
	}

	for _, workflow := range workflows {
		if workflow.ID == id || !workflow.IsActive || workflow.ApplicationType != target.ApplicationType {
			continue
		}

		workflow.IsActive = false

		if err := wr.write(workflow); err != nil {
			return err
		}
	}

	target.IsActive = true

	return wr.write(target)
}

// Deactivate flips the workflow inactive.
func (wr *WorkflowRepository) Deactivate(ctx context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow == nil {
		return persistence.NewWorkflowError("Deactivate", id, persistence.ErrWorkflowNotFound)
	}

	workflow.IsActive = false

	return wr.write(workflow)
}

func (wr *WorkflowRepository) write(workflow *models.Workflow) error {
	err := os.MkdirAll(wr.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", workflow.ID, err)
	}

	err = os.WriteFile(wr.path(workflow.ID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return nil
}
