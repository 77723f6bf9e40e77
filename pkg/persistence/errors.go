// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrActiveDefinitionNotFound indicates no active definition exists for a
	// (type, department) pair, including the ALL wildcard.
	ErrActiveDefinitionNotFound = errors.New("active workflow definition not found")

	// ErrInstanceNotFound indicates a workflow instance was not found.
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrDelegationNotFound indicates a delegation was not found.
	ErrDelegationNotFound = errors.New("delegation not found")

	// ErrGradePolicyNotFound indicates no grade approval config exists for a grade code.
	ErrGradePolicyNotFound = errors.New("grade approval config not found")

	// ErrRevisionConflict indicates a compare-and-swap instance update lost the
	// race against a concurrent writer.
	ErrRevisionConflict = errors.New("instance revision conflict")

	// ErrAlreadyExists indicates an entity with the same identifier already exists.
	ErrAlreadyExists = errors.New("entity already exists")
)

// DefinitionError wraps definition-related errors with additional context.
type DefinitionError struct {
	Op           string // Operation being performed (e.g., "ByID", "Save", "Activate")
	DefinitionID string
	Err          error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s operation failed for definition %s: %v", e.Op, e.DefinitionID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// InstanceError wraps instance-related errors with additional context.
type InstanceError struct {
	Op         string
	InstanceID string
	Err        error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates a new instance error with context.
func NewInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{Op: op, InstanceID: instanceID, Err: err}
}

// IsDefinitionNotFound checks if an error indicates a definition was not found.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound) || errors.Is(err, ErrActiveDefinitionNotFound)
}

// IsInstanceNotFound checks if an error indicates an instance was not found.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}

// IsDelegationNotFound checks if an error indicates a delegation was not found.
func IsDelegationNotFound(err error) bool {
	return errors.Is(err, ErrDelegationNotFound)
}

// IsRevisionConflict checks if an error indicates a lost optimistic-concurrency race.
func IsRevisionConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}
