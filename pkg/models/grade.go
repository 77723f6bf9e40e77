package models

import "time"

// AmountThreshold maps a request amount to the approval level it requires.
// Thresholds are evaluated descending by amount; the first threshold the
// amount meets or exceeds wins.
type AmountThreshold struct {
	Amount        float64 `json:"amount"         validate:"min=0"`
	RequiredLevel string  `json:"required_level" validate:"required"`
	Description   string  `json:"description,omitempty"`
}

// GradeApprovalConfig parameterizes the grade policy cache: per grade code,
// the maximum approval level it may reach, per-workflow-type overrides of
// that maximum, and ordered amount thresholds.
type GradeApprovalConfig struct {
	GradeCode        string                  `json:"grade_code"         validate:"required"`
	MaxApprovalLevel string                  `json:"max_approval_level" validate:"required"`
	TypeOverrides    map[WorkflowType]string `json:"type_overrides,omitempty"`
	Thresholds       []AmountThreshold       `json:"thresholds,omitempty"`
	UpdatedAt        time.Time               `json:"updated_at"`
}
