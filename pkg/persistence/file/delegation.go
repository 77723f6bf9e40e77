package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
)

// DelegationRepository handles delegation file operations.
type DelegationRepository struct {
	store *store
}

// NewDelegationRepository creates a new delegation repository.
func NewDelegationRepository(root string) *DelegationRepository {
	return &DelegationRepository{store: newStore(root, "delegations")}
}

func (r *DelegationRepository) Save(_ context.Context, delegation *models.Delegation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(delegation.ID, delegation)
}

func (r *DelegationRepository) Update(_ context.Context, delegation *models.Delegation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stored models.Delegation

	found, err := r.store.read(delegation.ID, &stored)
	if err != nil {
		return err
	}

	if !found {
		return fmt.Errorf("%w: %s", persistence.ErrDelegationNotFound, delegation.ID)
	}

	return r.store.write(delegation.ID, delegation)
}

func (r *DelegationRepository) ByID(_ context.Context, id string) (*models.Delegation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var delegation models.Delegation

	found, err := r.store.read(id, &delegation)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", persistence.ErrDelegationNotFound, id)
	}

	return &delegation, nil
}

func (r *DelegationRepository) ByDelegator(ctx context.Context, delegatorID string) ([]*models.Delegation, error) {
	return r.filter(func(delegation *models.Delegation) bool {
		return delegation.DelegatorID == delegatorID
	})
}

func (r *DelegationRepository) ByDelegate(ctx context.Context, delegateID string) ([]*models.Delegation, error) {
	return r.filter(func(delegation *models.Delegation) bool {
		return delegation.DelegateID == delegateID
	})
}

func (r *DelegationRepository) List(_ context.Context) ([]*models.Delegation, error) {
	return r.filter(func(*models.Delegation) bool { return true })
}

func (r *DelegationRepository) filter(keep func(*models.Delegation) bool) ([]*models.Delegation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	result := make([]*models.Delegation, 0)

	for _, id := range ids {
		var delegation models.Delegation

		found, err := r.store.read(id, &delegation)
		if err != nil {
			return nil, err
		}

		if found && keep(&delegation) {
			result = append(result, &delegation)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}
