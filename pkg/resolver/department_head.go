package resolver

import (
	"context"

	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/models"
)

// departmentHeadRule resolves the active department manager of the
// requester's department, falling back to the highest-grade active
// supervisor in that department.
type departmentHeadRule struct {
	directory directory.Directory
}

func (r *departmentHeadRule) Type() models.ApprovalRule {
	return models.RuleDepartmentHead
}

func (r *departmentHeadRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	return resolveDepartmentHead(ctx, r.directory, req.Employee.Department)
}
