package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
)

// DefinitionRepository handles workflow definition file operations.
type DefinitionRepository struct {
	store *store
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{store: newStore(root, "definitions")}
}

func (r *DefinitionRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(definition.ID, definition)
}

func (r *DefinitionRepository) Update(_ context.Context, definition *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stored models.WorkflowDefinition

	found, err := r.store.read(definition.ID, &stored)
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("%w: %s", persistence.ErrDefinitionNotFound, definition.ID)
	}

	return r.store.write(definition.ID, definition)
}

func (r *DefinitionRepository) ByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var definition models.WorkflowDefinition

	found, err := r.store.read(id, &definition)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", persistence.ErrDefinitionNotFound, id)
	}

	return &definition, nil
}

func (r *DefinitionRepository) ByTypeAndDepartment(ctx context.Context, workflowType models.WorkflowType, department string) ([]*models.WorkflowDefinition, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.WorkflowDefinition, 0)

	for _, definition := range all {
		if definition.WorkflowType == workflowType && definition.Department == department {
			result = append(result, definition)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version > result[j].Version
	})

	return result, nil
}

func (r *DefinitionRepository) List(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	result := make([]*models.WorkflowDefinition, 0, len(ids))

	for _, id := range ids {
		var definition models.WorkflowDefinition

		found, err := r.store.read(id, &definition)
		if err != nil {
			return nil, err
		}

		if found {
			result = append(result, &definition)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
