// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/approvio/approvio/pkg/models"
)

type EventType string

// Topic is the single topic carrying all workflow lifecycle events.
const Topic = "approvio.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Terminal outcomes consumed by business modules (loan, leave, ...).
	WorkflowApprovedEvent  EventType = "workflow.approved"
	WorkflowRejectedEvent  EventType = "workflow.rejected"
	WorkflowCancelledEvent EventType = "workflow.cancelled"

	// Non-terminal lifecycle events for notification fan-out.
	WorkflowCreatedEvent       EventType = "workflow.created"
	WorkflowStageAdvancedEvent EventType = "workflow.stage.advanced"
	WorkflowDelegatedEvent     EventType = "workflow.delegated"
)

type BaseEvent struct {
	ID           string              `json:"id"`
	Type         EventType           `json:"type"`
	Timestamp    time.Time           `json:"timestamp"`
	InstanceID   string              `json:"instance_id"`
	WorkflowType models.WorkflowType `json:"workflow_type"`
	RequesterID  string              `json:"requester_id"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
}

// WorkflowApproved is emitted when an instance passes its final stage. The
// request data bag is opaque to the engine; business modules read the fields
// they own (amount, interest rate, repayment period for loans, and so on).
type WorkflowApproved struct {
	BaseEvent

	RequestData             map[string]any `json:"request_data,omitempty"`
	ApprovedAmount          *float64       `json:"approved_amount,omitempty"`
	ApprovedInterestRate    *float64       `json:"approved_interest_rate,omitempty"`
	ApprovedRepaymentPeriod *int           `json:"approved_repayment_period,omitempty"`
}

func (w WorkflowApproved) GetType() EventType {
	return WorkflowApprovedEvent
}

type WorkflowRejected struct {
	BaseEvent

	RequestData     map[string]any `json:"request_data,omitempty"`
	RejectedBy      string         `json:"rejected_by"`
	RejectedAtStage int            `json:"rejected_at_stage"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

func (w WorkflowRejected) GetType() EventType {
	return WorkflowRejectedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	RequestData        map[string]any `json:"request_data,omitempty"`
	CancelledBy        string         `json:"cancelled_by"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
}

func (w WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

type WorkflowCreated struct {
	BaseEvent

	DefinitionID      string `json:"definition_id"`
	DefinitionVersion int    `json:"definition_version"`
	TotalStages       int    `json:"total_stages"`
}

func (w WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

// WorkflowStageAdvanced is emitted each time a stage gains a pending approver,
// so notification consumers can alert the assignee.
type WorkflowStageAdvanced struct {
	BaseEvent

	StageNumber  int    `json:"stage_number"`
	StageName    string `json:"stage_name"`
	ApproverID   string `json:"approver_id"`
	AutoApproved bool   `json:"auto_approved"`
}

func (w WorkflowStageAdvanced) GetType() EventType {
	return WorkflowStageAdvancedEvent
}

type WorkflowDelegated struct {
	BaseEvent

	StageNumber int    `json:"stage_number"`
	DelegatedBy string `json:"delegated_by"`
	DelegatedTo string `json:"delegated_to"`
}

func (w WorkflowDelegated) GetType() EventType {
	return WorkflowDelegatedEvent
}
