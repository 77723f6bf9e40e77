package resolver

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/models"
)

// maxChainDepth bounds reports-to chain walks against cyclic directory data.
const maxChainDepth = 20

// managerialLevelRule walks up the reports-to chain for the configured number
// of hops, applying delegation substitution at each hop. People who are not
// supervisors or managers are skipped without consuming a hop.
type managerialLevelRule struct {
	directory   directory.Directory
	delegations *delegation.Registry
}

func (r *managerialLevelRule) Type() models.ApprovalRule {
	return models.RuleManagerialLevel
}

func (r *managerialLevelRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	level, ok := configInt(req.Stage.Config, "level")
	if !ok || level < 1 {
		return nil, fmt.Errorf("managerial_level stage %d: missing or invalid level config", req.Stage.Number)
	}

	visited := map[string]bool{req.Employee.ID: true}

	current := req.Employee
	hops := 0

	candidateID := ""

	for depth := 0; depth < maxChainDepth && hops < level; depth++ {
		if current.ReportsTo == "" || visited[current.ReportsTo] {
			break
		}

		visited[current.ReportsTo] = true

		next, err := r.directory.EmployeeByID(ctx, current.ReportsTo)
		if err != nil {
			if directory.IsEmployeeNotFound(err) {
				break
			}

			return nil, fmt.Errorf("failed to walk reports-to chain from %s: %w", req.Employee.ID, err)
		}

		current = next

		if !next.IsActive() || !next.CanSupervise() {
			// Not a qualifying manager; move up without consuming a hop.
			continue
		}

		hops++

		substituted, err := substituteDelegate(ctx, r.directory, r.delegations, next.ID, req.WorkflowType)
		if err != nil {
			return nil, err
		}

		candidateID = substituted
	}

	if candidateID == "" {
		return []string{}, nil
	}

	return []string{candidateID}, nil
}
