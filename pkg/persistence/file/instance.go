package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
)

// InstanceRepository handles workflow instance file operations. Updates
// perform a compare-and-swap on the instance revision under the store lock.
type InstanceRepository struct {
	store *store
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{store: newStore(root, "instances")}
}

func (r *InstanceRepository) Save(_ context.Context, instance *models.WorkflowInstance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stored models.WorkflowInstance

	found, err := r.store.read(instance.ID, &stored)
	if err != nil {
		return err
	}

	if found {
		return fmt.Errorf("%w: %s", persistence.ErrAlreadyExists, instance.ID)
	}

	instance.Revision = 1

	return r.store.write(instance.ID, instance)
}

func (r *InstanceRepository) Update(_ context.Context, instance *models.WorkflowInstance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stored models.WorkflowInstance

	found, err := r.store.read(instance.ID, &stored)
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("%w: %s", persistence.ErrInstanceNotFound, instance.ID)
	}

	if stored.Revision != instance.Revision {
		return fmt.Errorf("%w: instance %s read at revision %d, stored revision %d",
			persistence.ErrRevisionConflict, instance.ID, instance.Revision, stored.Revision)
	}

	instance.Revision++

	return r.store.write(instance.ID, instance)
}

func (r *InstanceRepository) ByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var instance models.WorkflowInstance

	found, err := r.store.read(id, &instance)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInstanceNotFound, id)
	}

	return &instance, nil
}

func (r *InstanceRepository) PendingByApprover(ctx context.Context, approverID string) ([]*models.WorkflowInstance, error) {
	return r.filter(func(instance *models.WorkflowInstance) bool {
		return instance.Status == models.InstanceStatusInProgress && instance.CurrentApproverID == approverID
	})
}

func (r *InstanceRepository) DelegatedTo(ctx context.Context, delegateID string) ([]*models.WorkflowInstance, error) {
	return r.filter(func(instance *models.WorkflowInstance) bool {
		if instance.Status != models.InstanceStatusInProgress {
			return false
		}

		entry := instance.CurrentChainEntry()

		return entry != nil && entry.Status == models.ChainEntryDelegated && entry.DelegatedTo == delegateID
	})
}

func (r *InstanceRepository) ByRequester(_ context.Context, requesterID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	matches, err := r.filter(func(instance *models.WorkflowInstance) bool {
		if instance.RequesterID != requesterID {
			return false
		}

		if opts.Status != nil && instance.Status != *opts.Status {
			return false
		}

		if opts.WorkflowType != nil && instance.WorkflowType != *opts.WorkflowType {
			return false
		}

		return true
	})
	if err != nil {
		return nil, err
	}

	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.Offset >= len(matches) {
		return []*models.WorkflowInstance{}, nil
	}

	end := opts.Offset + opts.Limit
	if end > len(matches) {
		end = len(matches)
	}

	return matches[opts.Offset:end], nil
}

func (r *InstanceRepository) filter(keep func(*models.WorkflowInstance) bool) ([]*models.WorkflowInstance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	result := make([]*models.WorkflowInstance, 0)

	for _, id := range ids {
		var instance models.WorkflowInstance

		found, err := r.store.read(id, &instance)
		if err != nil {
			return nil, err
		}

		if found && keep(&instance) {
			result = append(result, &instance)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
