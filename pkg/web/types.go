// Package web provides HTTP request and response types for the approval API.
package web

import (
	"time"

	"github.com/approvio/approvio/pkg/models"
)

// CreateWorkflowRequest represents the request body for submitting a new
// approval workflow instance.
type CreateWorkflowRequest struct {
	WorkflowType string         `json:"workflow_type" validate:"required"`
	RequesterID  string         `json:"requester_id"  validate:"required"`
	Payload      map[string]any `json:"payload"`
}

// DecisionRequest represents the request body for approving or rejecting the
// current stage of an instance.
type DecisionRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Action     string `json:"action"      validate:"required,oneof=approve reject"`
	Comments   string `json:"comments"`
}

// DelegateRequest represents the request body for handing the current stage to
// another approver.
type DelegateRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	DelegateTo string `json:"delegate_to" validate:"required"`
	Comments   string `json:"comments"`
}

// CancelRequest represents the request body for cancelling an instance.
type CancelRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Reason  string `json:"reason"`
}

// CreateDelegationRequest represents the request body for registering a
// standing delegation window.
type CreateDelegationRequest struct {
	DelegatorID   string         `json:"delegator_id"   validate:"required"`
	DelegateID    string         `json:"delegate_id"    validate:"required"`
	WorkflowTypes []string       `json:"workflow_types" validate:"required,min=1"`
	StartDate     time.Time      `json:"start_date"     validate:"required"`
	EndDate       time.Time      `json:"end_date"       validate:"required"`
	Constraints   map[string]any `json:"constraints,omitempty"`
}

// ToModel converts the request into a domain delegation.
func (r *CreateDelegationRequest) ToModel() *models.Delegation {
	workflowTypes := make([]models.WorkflowType, 0, len(r.WorkflowTypes))
	for _, workflowType := range r.WorkflowTypes {
		workflowTypes = append(workflowTypes, models.WorkflowType(workflowType))
	}

	return &models.Delegation{
		DelegatorID:   r.DelegatorID,
		DelegateID:    r.DelegateID,
		WorkflowTypes: workflowTypes,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Constraints:   r.Constraints,
	}
}

// RevokeDelegationRequest represents the request body for revoking a delegation.
type RevokeDelegationRequest struct {
	RevokedBy string `json:"revoked_by" validate:"required"`
}

// StageRequest is one stage in a definition create or update request.
type StageRequest struct {
	Number int            `json:"number" validate:"required,min=1"`
	Name   string         `json:"name"   validate:"required"`
	Rule   string         `json:"rule"   validate:"required"`
	Config map[string]any `json:"config,omitempty"`
}

// DefinitionRequest represents the request body for creating or updating a
// workflow definition.
type DefinitionRequest struct {
	Name         string         `json:"name"          validate:"required,min=3"`
	WorkflowType string         `json:"workflow_type" validate:"required"`
	Department   string         `json:"department"    validate:"required"`
	Stages       []StageRequest `json:"stages"        validate:"required,min=1,dive"`
}

// ToModel converts the request into a domain definition.
func (r *DefinitionRequest) ToModel() *models.WorkflowDefinition {
	stages := make([]*models.Stage, 0, len(r.Stages))
	for _, stage := range r.Stages {
		stages = append(stages, &models.Stage{
			Number: stage.Number,
			Name:   stage.Name,
			Rule:   models.ApprovalRule(stage.Rule),
			Config: stage.Config,
		})
	}

	return &models.WorkflowDefinition{
		Name:         r.Name,
		WorkflowType: models.WorkflowType(r.WorkflowType),
		Department:   r.Department,
		Stages:       stages,
	}
}

// SaveGradePolicyRequest represents the request body for upserting the
// approval policy of one grade code.
type SaveGradePolicyRequest struct {
	MaxApprovalLevel string                   `json:"max_approval_level" validate:"required"`
	TypeOverrides    map[string]string        `json:"type_overrides,omitempty"`
	Thresholds       []models.AmountThreshold `json:"thresholds,omitempty"`
}

// ToModel converts the request into a grade approval config.
func (r *SaveGradePolicyRequest) ToModel(gradeCode string) *models.GradeApprovalConfig {
	overrides := make(map[models.WorkflowType]string, len(r.TypeOverrides))
	for workflowType, level := range r.TypeOverrides {
		overrides[models.WorkflowType(workflowType)] = level
	}

	return &models.GradeApprovalConfig{
		GradeCode:        gradeCode,
		MaxApprovalLevel: r.MaxApprovalLevel,
		TypeOverrides:    overrides,
		Thresholds:       r.Thresholds,
		UpdatedAt:        time.Now().UTC(),
	}
}
