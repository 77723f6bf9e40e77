package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
)

// GradePolicyRepository handles grade approval config file operations. The
// grade code doubles as the document identifier.
type GradePolicyRepository struct {
	store *store
}

// NewGradePolicyRepository creates a new grade policy repository.
func NewGradePolicyRepository(root string) *GradePolicyRepository {
	return &GradePolicyRepository{store: newStore(root, "grade_policies")}
}

func (r *GradePolicyRepository) Save(_ context.Context, config *models.GradeApprovalConfig) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.write(config.GradeCode, config)
}

func (r *GradePolicyRepository) ByGradeCode(_ context.Context, gradeCode string) (*models.GradeApprovalConfig, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var config models.GradeApprovalConfig

	found, err := r.store.read(gradeCode, &config)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", persistence.ErrGradePolicyNotFound, gradeCode)
	}

	return &config, nil
}

func (r *GradePolicyRepository) List(_ context.Context) ([]*models.GradeApprovalConfig, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	result := make([]*models.GradeApprovalConfig, 0, len(ids))

	for _, id := range ids {
		var config models.GradeApprovalConfig

		found, err := r.store.read(id, &config)
		if err != nil {
			return nil, err
		}

		if found {
			result = append(result, &config)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].GradeCode < result[j].GradeCode
	})

	return result, nil
}
