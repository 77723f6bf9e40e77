package resolver

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
)

// FinanceDepartmentCode is the directory code of the finance department used
// for the finance rule's fallback resolution.
const FinanceDepartmentCode = "FIN"

// financeRoles maps an approval level to the finance role names entitled to
// approve at that level.
var financeRoles = map[string][]string{
	"M11": {"finance_officer"},
	"M12": {"finance_officer", "finance_analyst"},
	"M13": {"finance_analyst", "finance_manager"},
	"M14": {"finance_manager"},
	"M15": {"finance_manager", "senior_finance_manager"},
	"M16": {"senior_finance_manager", "finance_controller"},
	"M17": {"finance_controller", "cfo"},
	"M18": {"cfo"},
}

// financeRule resolves approvers from the amount-driven approval level: the
// grade policy cache maps the requester's grade and the request amount to a
// required level, the level maps to finance roles, and active employees at
// exactly that grade holding one of those roles qualify. With no match, any
// active supervisor in the finance department stands in.
type financeRule struct {
	directory directory.Directory
	policies  *gradepolicy.Cache
}

func (r *financeRule) Type() models.ApprovalRule {
	return models.RuleFinance
}

func (r *financeRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	amount, _ := models.PayloadAmount(req.Payload)

	requiredLevel := r.policies.RequiredLevelForAmount(req.Employee.GradeCode, amount)
	roles := financeRoles[requiredLevel]

	candidates, err := r.directory.EmployeesByGrades(ctx, []string{requiredLevel})
	if err != nil {
		return nil, fmt.Errorf("failed to list employees at grade %s: %w", requiredLevel, err)
	}

	wanted := make(map[string]bool, len(roles))
	for _, role := range roles {
		wanted[role] = true
	}

	approvers := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.IsActive() && wanted[candidate.Role] {
			approvers = append(approvers, candidate.ID)
		}
	}

	if len(approvers) > 0 {
		return approvers, nil
	}

	return r.financeSupervisors(ctx)
}

func (r *financeRule) financeSupervisors(ctx context.Context) ([]string, error) {
	employees, err := r.directory.EmployeesByDepartment(ctx, FinanceDepartmentCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list finance department employees: %w", err)
	}

	approvers := make([]string, 0)

	for _, employee := range employees {
		if employee.IsActive() && employee.CanSupervise() {
			approvers = append(approvers, employee.ID)
		}
	}

	return approvers, nil
}
