package resolver

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
)

// managerLikeRoles qualifies employees for grade-based stages when they are
// not flagged supervisor or department manager.
var managerLikeRoles = map[string]bool{
	"manager":        true,
	"senior_manager": true,
	"head_of_unit":   true,
}

// gradeBasedRule resolves active supervisory employees whose grade level
// falls inside the configured [min_grade, max_grade] range.
type gradeBasedRule struct {
	directory directory.Directory
}

func (r *gradeBasedRule) Type() models.ApprovalRule {
	return models.RuleGradeBased
}

func (r *gradeBasedRule) Resolve(ctx context.Context, req Request) ([]string, error) {
	minGrade, okMin := configString(req.Stage.Config, "min_grade")
	maxGrade, okMax := configString(req.Stage.Config, "max_grade")

	if !okMin || !okMax {
		return nil, fmt.Errorf("grade_based stage %d: min_grade and max_grade config required", req.Stage.Number)
	}

	minLevel := gradepolicy.LevelRank(minGrade)
	maxLevel := gradepolicy.LevelRank(maxGrade)

	if minLevel == 0 || maxLevel == 0 || minLevel > maxLevel {
		return nil, fmt.Errorf("grade_based stage %d: invalid grade range %s..%s", req.Stage.Number, minGrade, maxGrade)
	}

	grades, err := r.directory.GradesByLevelRange(ctx, minLevel, maxLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve grades in range %d..%d: %w", minLevel, maxLevel, err)
	}

	gradeCodes := make([]string, 0, len(grades))
	for _, grade := range grades {
		gradeCodes = append(gradeCodes, grade.Code)
	}

	candidates, err := r.directory.EmployeesByGrades(ctx, gradeCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees in grade range: %w", err)
	}

	approvers := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		if !candidate.IsActive() {
			continue
		}

		if candidate.CanSupervise() || managerLikeRoles[candidate.Role] {
			approvers = append(approvers, candidate.ID)
		}
	}

	return approvers, nil
}
