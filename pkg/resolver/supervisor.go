package resolver

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
)

// supervisorRule follows the employee's reports-to reference once. When the
// supervisor is missing, inactive or not flagged as a supervisor/manager, it
// falls back to department-head resolution. An active delegation from the
// supervisor substitutes the delegate, provided the delegate can supervise.
type supervisorRule struct {
	directory   directory.Directory
	delegations *delegation.Registry
}

func (r *supervisorRule) Type() models.ApprovalRule {
	return models.RuleSupervisor
}

func (r *supervisorRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	supervisor, err := r.lookupSupervisor(ctx, req.Employee)
	if err != nil {
		return nil, err
	}

	if supervisor == nil {
		return resolveDepartmentHead(ctx, r.directory, req.Employee.Department)
	}

	substituted, err := substituteDelegate(ctx, r.directory, r.delegations, supervisor.ID, req.WorkflowType)
	if err != nil {
		return nil, err
	}

	return []string{substituted}, nil
}

func (r *supervisorRule) lookupSupervisor(ctx context.Context, employee *models.Employee) (*models.Employee, error) {
	if employee.ReportsTo == "" {
		return nil, nil
	}

	supervisor, err := r.directory.EmployeeByID(ctx, employee.ReportsTo)
	if err != nil {
		if directory.IsEmployeeNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to look up supervisor of %s: %w", employee.ID, err)
	}

	if !supervisor.IsActive() || !supervisor.CanSupervise() {
		return nil, nil
	}

	return supervisor, nil
}

// substituteDelegate replaces an approver with their active delegate for the
// workflow type, when the delegate is itself a supervisor or manager. The
// original approver stands otherwise.
func substituteDelegate(
	ctx context.Context,
	dir directory.Directory,
	delegations *delegation.Registry,
	approverID string,
	workflowType models.WorkflowType,
) (string, error) {
	match, err := delegations.FindActiveDelegation(ctx, approverID, workflowType)
	if err != nil {
		return "", err
	}

	if match == nil {
		return approverID, nil
	}

	delegate, err := dir.EmployeeByID(ctx, match.DelegateID)
	if err != nil {
		if directory.IsEmployeeNotFound(err) {
			return approverID, nil
		}

		return "", err
	}

	if !delegate.IsActive() || !delegate.CanSupervise() {
		return approverID, nil
	}

	return delegate.ID, nil
}

// resolveDepartmentHead returns the active department manager of the given
// department, or the highest-grade-level active supervisor in it when no
// manager is flagged.
func resolveDepartmentHead(ctx context.Context, dir directory.Directory, department string) ([]string, error) {
	employees, err := dir.EmployeesByDepartment(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees of department %s: %w", department, err)
	}

	for _, employee := range employees {
		if employee.IsActive() && employee.IsDepartmentManager {
			return []string{employee.ID}, nil
		}
	}

	var best *models.Employee

	for _, employee := range employees {
		if !employee.IsActive() || !employee.IsSupervisor {
			continue
		}

		if best == nil || gradepolicy.LevelRank(employee.GradeCode) > gradepolicy.LevelRank(best.GradeCode) {
			best = employee
		}
	}

	if best == nil {
		return []string{}, nil
	}

	return []string{best.ID}, nil
}
