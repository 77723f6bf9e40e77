// Package resolver resolves the eligible approvers for a workflow stage from
// organizational data: supervisor chains, grade ranges, finance role mapping,
// department heads, roles and specific users, with delegation substitution.
package resolver

import (
	"context"
	"log/slog"

	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
)

// Request carries everything a rule needs to resolve a stage's approvers.
type Request struct {
	Employee     *models.Employee
	Stage        *models.Stage
	WorkflowType models.WorkflowType
	Payload      map[string]any
}

// Rule resolves approver identities for one approval rule type. The rule set
// is closed; each variant implements exactly one resolution strategy.
type Rule interface {
	Type() models.ApprovalRule
	Resolve(ctx context.Context, req Request) ([]string, error)
}

// Resolver dispatches stage resolution to the registered rule implementations.
type Resolver struct {
	rules  map[models.ApprovalRule]Rule
	logger *slog.Logger
}

// NewResolver creates a resolver with every built-in rule registered.
func NewResolver(
	dir directory.Directory,
	policies *gradepolicy.Cache,
	delegations *delegation.Registry,
	logger *slog.Logger,
) *Resolver {
	resolver := &Resolver{
		rules:  make(map[models.ApprovalRule]Rule),
		logger: logger,
	}

	resolver.register(&supervisorRule{directory: dir, delegations: delegations})
	resolver.register(&managerialLevelRule{directory: dir, delegations: delegations})
	resolver.register(&departmentHeadRule{directory: dir})
	resolver.register(&financeRule{directory: dir, policies: policies})
	resolver.register(&gradeBasedRule{directory: dir})
	resolver.register(&roleBasedRule{directory: dir})
	resolver.register(&specificUserRule{directory: dir})

	return resolver
}

func (r *Resolver) register(rule Rule) {
	r.rules[rule.Type()] = rule
}

// ResolveApproversForStage returns the ordered, deduplicated approver
// identities for a stage. An unknown rule resolves to an empty set rather
// than failing; the engine's auto-approval fallback handles empty stages.
func (r *Resolver) ResolveApproversForStage(
	ctx context.Context,
	employee *models.Employee,
	stage *models.Stage,
	workflowType models.WorkflowType,
	payload map[string]any,
) ([]string, error) {
	rule, ok := r.rules[stage.Rule]
	if !ok {
		r.logger.WarnContext(ctx, "No resolver registered for approval rule, resolving empty",
			"rule", stage.Rule, "stage", stage.Number)

		return []string{}, nil
	}

	approvers, err := rule.Resolve(ctx, Request{
		Employee:     employee,
		Stage:        stage,
		WorkflowType: workflowType,
		Payload:      payload,
	})
	if err != nil {
		return nil, err
	}

	return dedupe(approvers), nil
}

// dedupe removes duplicate identities preserving first-seen order.
func dedupe(approvers []string) []string {
	seen := make(map[string]bool, len(approvers))
	result := make([]string, 0, len(approvers))

	for _, id := range approvers {
		if id == "" || seen[id] {
			continue
		}

		seen[id] = true

		result = append(result, id)
	}

	return result
}

// configString reads a string value from a stage config.
func configString(config map[string]any, key string) (string, bool) {
	raw, ok := config[key]
	if !ok {
		return "", false
	}

	value, ok := raw.(string)

	return value, ok
}

// configInt reads an integer value from a stage config, tolerating the
// float64 representation JSON decoding produces.
func configInt(config map[string]any, key string) (int, bool) {
	raw, ok := config[key]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
