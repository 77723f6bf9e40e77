// Package models defines the core domain models for the dynamic approval workflow engine.
package models

import (
	"fmt"
	"time"
)

// WorkflowType is the category of business request routed through the engine.
type WorkflowType string

const (
	WorkflowTypeLoanApplication WorkflowType = "loan_application"
	WorkflowTypeTravelRequest   WorkflowType = "travel_request"
	WorkflowTypeOvertimeClaim   WorkflowType = "overtime_claim"
	WorkflowTypeLeaveRequest    WorkflowType = "leave_request"
	WorkflowTypeExpenseClaim    WorkflowType = "expense_claim"
	WorkflowTypeRecruitment     WorkflowType = "recruitment"
	WorkflowTypePayrollApproval WorkflowType = "payroll_approval"

	// WorkflowTypeAll is the sentinel used by delegations that cover every type.
	WorkflowTypeAll WorkflowType = "all"
)

// WorkflowTypes lists every routable workflow type (excludes the ALL sentinel).
var WorkflowTypes = []WorkflowType{
	WorkflowTypeLoanApplication,
	WorkflowTypeTravelRequest,
	WorkflowTypeOvertimeClaim,
	WorkflowTypeLeaveRequest,
	WorkflowTypeExpenseClaim,
	WorkflowTypeRecruitment,
	WorkflowTypePayrollApproval,
}

// IsValid reports whether t is a known routable workflow type.
func (t WorkflowType) IsValid() bool {
	for _, known := range WorkflowTypes {
		if t == known {
			return true
		}
	}

	return false
}

// ApprovalRule is the strategy used to resolve a stage's approvers.
type ApprovalRule string

const (
	RuleSupervisor      ApprovalRule = "supervisor"
	RuleManagerialLevel ApprovalRule = "managerial_level"
	RuleGradeBased      ApprovalRule = "grade_based"
	RuleFinance         ApprovalRule = "finance"
	RuleDepartmentHead  ApprovalRule = "department_head"
	RuleRoleBased       ApprovalRule = "role_based"
	RuleSpecificUser    ApprovalRule = "specific_user"
)

// ApprovalRules lists the closed set of supported approval rules.
var ApprovalRules = []ApprovalRule{
	RuleSupervisor,
	RuleManagerialLevel,
	RuleGradeBased,
	RuleFinance,
	RuleDepartmentHead,
	RuleRoleBased,
	RuleSpecificUser,
}

// IsValid reports whether r is a member of the closed rule set.
func (r ApprovalRule) IsValid() bool {
	for _, known := range ApprovalRules {
		if r == known {
			return true
		}
	}

	return false
}

// DepartmentAll is the wildcard department scope for workflow definitions.
const DepartmentAll = "ALL"

// Stage is one step in a workflow definition, bound to an approval rule and
// its rule-specific configuration.
type Stage struct {
	Number int            `json:"number"           validate:"required,min=1"`
	Name   string         `json:"name"             validate:"required"`
	Rule   ApprovalRule   `json:"rule"             validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// WorkflowDefinition is a versioned, ordered template of approval stages for a
// (workflow type, department) pair. Definitions are never mutated once active;
// superseding behavior requires activating a newer version.
type WorkflowDefinition struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"          validate:"required,min=3"`
	WorkflowType WorkflowType `json:"workflow_type" validate:"required"`
	Department   string       `json:"department"    validate:"required"` // "ALL" or a department code
	Stages       []*Stage     `json:"stages"        validate:"required,min=1"`
	Version      int          `json:"version"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ValidateStages checks the structural invariants of the stage list: at least
// one stage, numbers forming the exact contiguous sequence 1..n, non-empty
// names, and rules drawn from the closed set.
func (d *WorkflowDefinition) ValidateStages() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("definition %q: at least one stage is required", d.Name)
	}

	seen := make(map[int]bool, len(d.Stages))

	for _, stage := range d.Stages {
		if stage.Number < 1 || stage.Number > len(d.Stages) {
			return fmt.Errorf("definition %q: stage number %d outside 1..%d", d.Name, stage.Number, len(d.Stages))
		}

		if seen[stage.Number] {
			return fmt.Errorf("definition %q: duplicate stage number %d", d.Name, stage.Number)
		}

		seen[stage.Number] = true

		if stage.Name == "" {
			return fmt.Errorf("definition %q: stage %d has no name", d.Name, stage.Number)
		}

		if !stage.Rule.IsValid() {
			return fmt.Errorf("definition %q: stage %d has unknown approval rule %q", d.Name, stage.Number, stage.Rule)
		}
	}

	return nil
}

// StageByNumber returns the stage with the given number, or nil.
func (d *WorkflowDefinition) StageByNumber(number int) *Stage {
	for _, stage := range d.Stages {
		if stage.Number == number {
			return stage
		}
	}

	return nil
}
