package resolver

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/models"
)

// specificUserRule resolves the single configured employee, when present.
type specificUserRule struct {
	directory directory.Directory
}

func (r *specificUserRule) Type() models.ApprovalRule {
	return models.RuleSpecificUser
}

func (r *specificUserRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	userID, ok := configString(req.Stage.Config, "user_id")
	if !ok || userID == "" {
		return nil, fmt.Errorf("specific_user stage %d: user_id config required", req.Stage.Number)
	}

	employee, err := r.directory.EmployeeByID(ctx, userID)
	if err != nil {
		if directory.IsEmployeeNotFound(err) {
			return []string{}, nil
		}

		return nil, err
	}

	return []string{employee.ID}, nil
}
