package models

import "time"

// Delegation is a time-bounded substitution of one approver for another,
// scoped to one or more workflow types (or the ALL sentinel).
type Delegation struct {
	ID            string         `json:"id"`
	DelegatorID   string         `json:"delegator_id"   validate:"required"`
	DelegateID    string         `json:"delegate_id"    validate:"required"`
	WorkflowTypes []WorkflowType `json:"workflow_types" validate:"required,min=1"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	Active        bool           `json:"active"`
	RevokedBy     string         `json:"revoked_by,omitempty"`
	RevokedAt     *time.Time     `json:"revoked_at,omitempty"`
	Constraints   map[string]any `json:"constraints,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Covers reports whether the delegation applies to the given workflow type.
func (d *Delegation) Covers(workflowType WorkflowType) bool {
	for _, t := range d.WorkflowTypes {
		if t == WorkflowTypeAll || t == workflowType {
			return true
		}
	}

	return false
}

// ActiveAt reports whether the delegation is active and its validity window
// contains the given instant.
func (d *Delegation) ActiveAt(now time.Time) bool {
	return d.Active && !now.Before(d.StartDate) && !now.After(d.EndDate)
}
