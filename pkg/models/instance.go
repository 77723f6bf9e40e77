package models

import "time"

// InstanceStatus represents the lifecycle state of a workflow instance.
type InstanceStatus string

const (
	InstanceStatusDraft      InstanceStatus = "draft"       // Transient, assigned during creation
	InstanceStatusSubmitted  InstanceStatus = "submitted"   // Persisted, no stage assigned yet
	InstanceStatusInProgress InstanceStatus = "in_progress" // A stage has a pending chain entry
	InstanceStatusApproved   InstanceStatus = "approved"    // Terminal
	InstanceStatusRejected   InstanceStatus = "rejected"    // Terminal
	InstanceStatusCancelled  InstanceStatus = "cancelled"   // Terminal
)

// IsTerminal reports whether no further transitions are permitted.
func (s InstanceStatus) IsTerminal() bool {
	return s == InstanceStatusApproved || s == InstanceStatusRejected || s == InstanceStatusCancelled
}

// ApprovalAction is an action taken by an approver on a pending stage.
type ApprovalAction string

const (
	ActionApprove  ApprovalAction = "approve"
	ActionReject   ApprovalAction = "reject"
	ActionDelegate ApprovalAction = "delegate"
	ActionCancel   ApprovalAction = "cancel"
	ActionSubmit   ApprovalAction = "submit"
)

// ChainEntryStatus is the state of a single approval chain entry.
type ChainEntryStatus string

const (
	ChainEntryPending   ChainEntryStatus = "pending"
	ChainEntryApproved  ChainEntryStatus = "approved"
	ChainEntryRejected  ChainEntryStatus = "rejected"
	ChainEntryDelegated ChainEntryStatus = "delegated"
)

// ApprovalChainEntry records who was assigned a stage and what they decided.
// One entry is appended per stage reached.
type ApprovalChainEntry struct {
	ApproverID  string           `json:"approver_id"`
	StageNumber int              `json:"stage_number"`
	StageName   string           `json:"stage_name"`
	Status      ChainEntryStatus `json:"status"`
	Action      ApprovalAction   `json:"action,omitempty"`
	Comments    string           `json:"comments,omitempty"`
	ActedAt     *time.Time       `json:"acted_at,omitempty"`
	DelegatedTo string           `json:"delegated_to,omitempty"`
}

// ApprovalHistoryEntry is one record in the append-only audit log of actions
// taken across an instance's lifetime.
type ApprovalHistoryEntry struct {
	FromStage int            `json:"from_stage"`
	ToStage   int            `json:"to_stage"`
	Action    ApprovalAction `json:"action"`
	ActorID   string         `json:"actor_id"`
	Comments  string         `json:"comments,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// WorkflowContext is a denormalized snapshot of the requester's organizational
// facts taken at workflow creation, owned exclusively by its instance.
type WorkflowContext struct {
	RequesterID  string    `json:"requester_id"`
	GradeCode    string    `json:"grade_code"`
	GradeLevel   int       `json:"grade_level"`
	Department   string    `json:"department"`
	SupervisorID string    `json:"supervisor_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WorkflowInstance is one in-flight or completed execution of a workflow
// definition for a specific requester and request payload.
//
// Invariants maintained by the engine: 0 <= CurrentStage <= TotalStages; the
// chain entry at index CurrentStage-1 is the only entry that may be pending;
// terminal instances are never mutated again.
type WorkflowInstance struct {
	ID                string                  `json:"id"`
	WorkflowType      WorkflowType            `json:"workflow_type"      validate:"required"`
	DefinitionID      string                  `json:"definition_id"`
	DefinitionVersion int                     `json:"definition_version"`
	RequesterID       string                  `json:"requester_id"       validate:"required"`
	CurrentApproverID string                  `json:"current_approver_id,omitempty"`
	Status            InstanceStatus          `json:"status"`
	Payload           map[string]any          `json:"payload"`
	Context           *WorkflowContext        `json:"context,omitempty"`
	Chain             []*ApprovalChainEntry   `json:"chain"`
	History           []*ApprovalHistoryEntry `json:"history"`
	CurrentStage      int                     `json:"current_stage"`
	TotalStages       int                     `json:"total_stages"`
	Revision          int64                   `json:"revision"` // Optimistic concurrency token
	Metadata          map[string]any          `json:"metadata,omitempty"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
	CancelledBy       string                  `json:"cancelled_by,omitempty"`
	CancelReason      string                  `json:"cancel_reason,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// CurrentChainEntry returns the chain entry for the current stage, or nil when
// no stage has been entered yet.
func (i *WorkflowInstance) CurrentChainEntry() *ApprovalChainEntry {
	if i.CurrentStage < 1 || i.CurrentStage > len(i.Chain) {
		return nil
	}

	return i.Chain[i.CurrentStage-1]
}

// AppendHistory records an action in the append-only audit log.
func (i *WorkflowInstance) AppendHistory(fromStage, toStage int, action ApprovalAction, actorID, comments string) {
	i.History = append(i.History, &ApprovalHistoryEntry{
		FromStage: fromStage,
		ToStage:   toStage,
		Action:    action,
		ActorID:   actorID,
		Comments:  comments,
		Timestamp: time.Now().UTC(),
	})
}

// Amount extracts the monetary amount from the request payload, used by the
// finance rule. Accepts float64 (JSON numbers) and int.
func (i *WorkflowInstance) Amount() (float64, bool) {
	return PayloadAmount(i.Payload)
}

// PayloadAmount reads the "amount" field from a request payload.
func PayloadAmount(payload map[string]any) (float64, bool) {
	raw, ok := payload["amount"]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
