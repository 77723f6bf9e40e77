// Package persistence provides the data storage abstraction layer for
// workflow definitions, instances, delegations and grade policies.
package persistence

import (
	"context"

	"github.com/approvio/approvio/pkg/models"
)

// Persistence bundles the repositories backed by one store.
type Persistence interface {
	Definitions() DefinitionRepository
	Instances() InstanceRepository
	Delegations() DelegationRepository
	GradePolicies() GradePolicyRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores versioned workflow definitions.
type DefinitionRepository interface {
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
	Update(ctx context.Context, definition *models.WorkflowDefinition) error
	ByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	// ByTypeAndDepartment returns every version for the exact (type, department)
	// pair, newest version first.
	ByTypeAndDepartment(ctx context.Context, workflowType models.WorkflowType, department string) ([]*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// ListInstancesOptions filters and paginates instance listings.
type ListInstancesOptions struct {
	Status       *models.InstanceStatus
	WorkflowType *models.WorkflowType
	Limit        int
	Offset       int
}

// InstanceRepository stores workflow instances.
//
// Update performs a compare-and-swap on the instance revision: the write
// succeeds only when the stored revision equals the revision the caller read,
// and increments it. A losing writer receives ErrRevisionConflict.
type InstanceRepository interface {
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	Update(ctx context.Context, instance *models.WorkflowInstance) error
	ByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	// PendingByApprover returns in-progress instances whose current approver is
	// the given employee.
	PendingByApprover(ctx context.Context, approverID string) ([]*models.WorkflowInstance, error)
	// DelegatedTo returns in-progress instances whose current chain entry was
	// delegated to the given employee.
	DelegatedTo(ctx context.Context, delegateID string) ([]*models.WorkflowInstance, error)
	ByRequester(ctx context.Context, requesterID string, opts ListInstancesOptions) ([]*models.WorkflowInstance, error)
}

// DelegationRepository stores approval delegations.
type DelegationRepository interface {
	Save(ctx context.Context, delegation *models.Delegation) error
	Update(ctx context.Context, delegation *models.Delegation) error
	ByID(ctx context.Context, id string) (*models.Delegation, error)
	ByDelegator(ctx context.Context, delegatorID string) ([]*models.Delegation, error)
	ByDelegate(ctx context.Context, delegateID string) ([]*models.Delegation, error)
	List(ctx context.Context) ([]*models.Delegation, error)
}

// GradePolicyRepository stores grade approval configurations. The grade policy
// cache refreshes from List.
type GradePolicyRepository interface {
	Save(ctx context.Context, config *models.GradeApprovalConfig) error
	ByGradeCode(ctx context.Context, gradeCode string) (*models.GradeApprovalConfig, error)
	List(ctx context.Context) ([]*models.GradeApprovalConfig, error)
}
