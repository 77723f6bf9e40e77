package resolver

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/models"
)

// roleBasedRule resolves every active employee holding the configured system role.
type roleBasedRule struct {
	directory directory.Directory
}

func (r *roleBasedRule) Type() models.ApprovalRule {
	return models.RuleRoleBased
}

func (r *roleBasedRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	role, ok := configString(req.Stage.Config, "role")
	if !ok || role == "" {
		return nil, fmt.Errorf("role_based stage %d: role config required", req.Stage.Number)
	}

	candidates, err := r.directory.EmployeesByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees with role %s: %w", role, err)
	}

	approvers := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.IsActive() {
			approvers = append(approvers, candidate.ID)
		}
	}

	return approvers, nil
}
