// Package engine provides standardized error types for workflow engine operations.
package engine

import (
	"errors"

	"github.com/approvio/approvio/pkg/persistence"
)

var (
	// ErrUnauthorizedApprover indicates the acting approver does not match the
	// current pending chain entry.
	ErrUnauthorizedApprover = errors.New("approver is not assigned to the current stage")

	// ErrWorkflowNotPending indicates an action against an instance with no
	// actionable stage (terminal, or not yet advanced).
	ErrWorkflowNotPending = errors.New("workflow instance has no pending stage")

	// ErrWorkflowTerminal indicates a transition attempt on a terminal instance.
	ErrWorkflowTerminal = errors.New("workflow instance is in a terminal state")

	// ErrInvalidAction indicates an approval action outside approve/reject.
	ErrInvalidAction = errors.New("invalid approval action")

	// ErrSelfDelegation indicates a stage delegation to the acting approver itself.
	ErrSelfDelegation = errors.New("cannot delegate a stage to yourself")

	// ErrAdvanceLoop indicates stage advancement failed to terminate within the
	// definition's stage count. This is a configuration fault, not a transient
	// condition.
	ErrAdvanceLoop = errors.New("stage advancement exceeded the definition's stage count")
)

// IsUnauthorized checks if an error should surface as a forbidden condition.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorizedApprover)
}

// IsInvalidState checks if an error indicates an instance that cannot accept
// the requested action in its current state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrWorkflowNotPending) ||
		errors.Is(err, ErrWorkflowTerminal) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrSelfDelegation)
}

// IsConflict checks if an error indicates a lost concurrent-update race.
func IsConflict(err error) bool {
	return persistence.IsRevisionConflict(err)
}
