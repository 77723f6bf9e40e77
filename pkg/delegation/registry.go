// Package delegation provides the registry of time-windowed approval
// delegations consulted whenever an approver is about to be assigned a stage.
package delegation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/google/uuid"
)

var (
	// ErrSelfDelegation indicates a delegation where delegator and delegate are the same employee.
	ErrSelfDelegation = errors.New("cannot delegate approvals to yourself")

	// ErrInvalidWindow indicates a delegation whose end date is not after its start date.
	ErrInvalidWindow = errors.New("delegation end date must be after start date")

	// ErrNoWorkflowTypes indicates a delegation with an empty workflow type set.
	ErrNoWorkflowTypes = errors.New("delegation must cover at least one workflow type")
)

// Registry answers delegation queries for the approver resolver and owns
// delegation lifecycle (create, revoke).
type Registry struct {
	delegations persistence.DelegationRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewRegistry creates a delegation registry over the given repository.
func NewRegistry(delegations persistence.DelegationRepository, logger *slog.Logger) *Registry {
	return &Registry{
		delegations: delegations,
		logger:      logger,
		now:         time.Now,
	}
}

// FindActiveDelegation returns the delegation that currently substitutes the
// delegator's approvals for the given workflow type, or nil when none applies.
// When several delegations match, the most recently created one wins; the
// tie-break is deterministic so repeated resolutions agree.
func (r *Registry) FindActiveDelegation(ctx context.Context, delegatorID string, workflowType models.WorkflowType) (*models.Delegation, error) {
	candidates, err := r.delegations.ByDelegator(ctx, delegatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegations for %s: %w", delegatorID, err)
	}

	now := r.now().UTC()

	var match *models.Delegation

	for _, candidate := range candidates {
		if !candidate.ActiveAt(now) || !candidate.Covers(workflowType) {
			continue
		}

		if match == nil || candidate.CreatedAt.After(match.CreatedAt) {
			match = candidate
		}
	}

	return match, nil
}

// HasDelegatedApproval reports whether the delegator currently has an active
// delegation covering the workflow type.
func (r *Registry) HasDelegatedApproval(ctx context.Context, delegatorID string, workflowType models.WorkflowType) (bool, error) {
	match, err := r.FindActiveDelegation(ctx, delegatorID, workflowType)
	if err != nil {
		return false, err
	}

	return match != nil, nil
}

// ActiveDelegations returns the delegator's delegations that are active right now.
func (r *Registry) ActiveDelegations(ctx context.Context, delegatorID string) ([]*models.Delegation, error) {
	candidates, err := r.delegations.ByDelegator(ctx, delegatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegations for %s: %w", delegatorID, err)
	}

	now := r.now().UTC()
	active := make([]*models.Delegation, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.ActiveAt(now) {
			active = append(active, candidate)
		}
	}

	return active, nil
}

// DelegationsTo returns delegations currently naming the employee as delegate.
func (r *Registry) DelegationsTo(ctx context.Context, delegateID string) ([]*models.Delegation, error) {
	candidates, err := r.delegations.ByDelegate(ctx, delegateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load delegations to %s: %w", delegateID, err)
	}

	now := r.now().UTC()
	active := make([]*models.Delegation, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.ActiveAt(now) {
			active = append(active, candidate)
		}
	}

	return active, nil
}

// Create validates and persists a new delegation.
func (r *Registry) Create(ctx context.Context, delegation *models.Delegation) (*models.Delegation, error) {
	if delegation.DelegatorID == delegation.DelegateID {
		return nil, ErrSelfDelegation
	}

	if len(delegation.WorkflowTypes) == 0 {
		return nil, ErrNoWorkflowTypes
	}

	if !delegation.EndDate.After(delegation.StartDate) {
		return nil, ErrInvalidWindow
	}

	now := r.now().UTC()

	delegation.ID = uuid.New().String()
	delegation.Active = true
	delegation.CreatedAt = now
	delegation.UpdatedAt = now

	err := r.delegations.Save(ctx, delegation)
	if err != nil {
		return nil, fmt.Errorf("failed to save delegation: %w", err)
	}

	r.logger.InfoContext(ctx, "Delegation created",
		"delegation_id", delegation.ID,
		"delegator", delegation.DelegatorID,
		"delegate", delegation.DelegateID)

	return delegation, nil
}

// Revoke soft-deactivates a delegation, recording who revoked it.
func (r *Registry) Revoke(ctx context.Context, delegationID, revokedBy string) error {
	delegation, err := r.delegations.ByID(ctx, delegationID)
	if err != nil {
		return err
	}

	now := r.now().UTC()

	delegation.Active = false
	delegation.RevokedBy = revokedBy
	delegation.RevokedAt = &now
	delegation.UpdatedAt = now

	err = r.delegations.Update(ctx, delegation)
	if err != nil {
		return fmt.Errorf("failed to revoke delegation %s: %w", delegationID, err)
	}

	r.logger.InfoContext(ctx, "Delegation revoked",
		"delegation_id", delegationID, "revoked_by", revokedBy)

	return nil
}

// DeactivateExpired soft-deactivates every active delegation whose window has
// passed. Used by the sweeper; the engine itself treats expiry implicitly.
func (r *Registry) DeactivateExpired(ctx context.Context) (int, error) {
	candidates, err := r.delegations.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list delegations: %w", err)
	}

	now := r.now().UTC()
	swept := 0

	for _, candidate := range candidates {
		if !candidate.Active || !now.After(candidate.EndDate) {
			continue
		}

		candidate.Active = false
		candidate.UpdatedAt = now

		err := r.delegations.Update(ctx, candidate)
		if err != nil {
			return swept, fmt.Errorf("failed to deactivate delegation %s: %w", candidate.ID, err)
		}

		swept++
	}

	return swept, nil
}
