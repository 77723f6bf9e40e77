package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/approvio/approvio/pkg/definitions"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/events"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/mocks"
	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence/file"
	"github.com/approvio/approvio/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticPolicyStore struct {
	configs []*models.GradeApprovalConfig
}

func (s *staticPolicyStore) List(context.Context) ([]*models.GradeApprovalConfig, error) {
	return s.configs, nil
}

type engineFixture struct {
	engine      *Engine
	directory   *directory.Memory
	definitions *definitions.Registry
	delegations *delegation.Registry
	eventBus    *mocks.MockEventBus
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	root := t.TempDir()

	definitionRegistry := definitions.NewRegistry(file.NewDefinitionRepository(root), slog.Default())
	delegationRegistry := delegation.NewRegistry(file.NewDelegationRepository(root), slog.Default())
	dir := directory.NewMemory()

	policies := gradepolicy.NewCache(&staticPolicyStore{}, slog.Default())
	require.NoError(t, policies.Refresh(t.Context()))

	eventBus := &mocks.MockEventBus{}
	eventBus.On("GenerateID").Return("evt-1")
	eventBus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	approverResolver := resolver.NewResolver(dir, policies, delegationRegistry, slog.Default())

	engine := NewEngine(
		file.NewInstanceRepository(root),
		definitionRegistry,
		approverResolver,
		delegationRegistry,
		dir,
		policies,
		eventBus,
		slog.Default(),
	)

	return &engineFixture{
		engine:      engine,
		directory:   dir,
		definitions: definitionRegistry,
		delegations: delegationRegistry,
		eventBus:    eventBus,
	}
}

// seedOrg installs a requester reporting to a supervisor who reports to the
// department manager.
func (f *engineFixture) seedOrg() {
	f.directory.AddEmployee(&models.Employee{
		ID: "emp-1", GradeCode: "E2", Department: "ENG", ReportsTo: "mgr-1",
		Status: models.EmploymentActive,
	})
	f.directory.AddEmployee(&models.Employee{
		ID: "mgr-1", GradeCode: "M12", Department: "ENG", ReportsTo: "head-1",
		Status: models.EmploymentActive, IsSupervisor: true,
	})
	f.directory.AddEmployee(&models.Employee{
		ID: "head-1", GradeCode: "M15", Department: "ENG",
		Status: models.EmploymentActive, IsDepartmentManager: true,
	})
}

func (f *engineFixture) activateDefinition(t *testing.T, stages ...*models.Stage) {
	t.Helper()

	created, err := f.definitions.Create(t.Context(), &models.WorkflowDefinition{
		Name:         "Leave Approval",
		WorkflowType: models.WorkflowTypeLeaveRequest,
		Department:   models.DepartmentAll,
		Stages:       stages,
	})
	require.NoError(t, err)

	_, err = f.definitions.Activate(t.Context(), created.ID)
	require.NoError(t, err)
}

func (f *engineFixture) twoStageDefinition(t *testing.T) {
	t.Helper()

	f.activateDefinition(t,
		&models.Stage{Number: 1, Name: "Supervisor Review", Rule: models.RuleSupervisor},
		&models.Stage{Number: 2, Name: "Head Sign-off", Rule: models.RuleDepartmentHead},
	)
}

func TestEngine_CreateWorkflow(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1",
		map[string]any{"days": 3})
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusInProgress, instance.Status)
	assert.Equal(t, 1, instance.CurrentStage)
	assert.Equal(t, 2, instance.TotalStages)
	assert.Equal(t, "mgr-1", instance.CurrentApproverID)

	require.Len(t, instance.Chain, 1)
	assert.Equal(t, models.ChainEntryPending, instance.Chain[0].Status)

	assert.Equal(t, "E2", instance.Payload["requester_grade"])
	require.NotNil(t, instance.Context)
	assert.Equal(t, "ENG", instance.Context.Department)
	assert.Equal(t, "mgr-1", instance.Context.SupervisorID)

	require.NotEmpty(t, instance.History)
	assert.Equal(t, models.ActionSubmit, instance.History[0].Action)

	// Creation emits a created event and an advancement event.
	f.eventBus.AssertNumberOfCalls(t, "Publish", 2)

	stored, err := f.engine.InstanceByID(t.Context(), instance.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, stored.ID)
}

func TestEngine_CreateWorkflowValidation(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	_, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowType("bonus_request"), "emp-1", nil)
	assert.ErrorIs(t, err, definitions.ErrUnknownWorkflowType)

	_, err = f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "ghost-1", nil)
	assert.True(t, directory.IsEmployeeNotFound(err))

	// No active definition for this type.
	_, err = f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLoanApplication, "emp-1", nil)
	assert.Error(t, err)
}

func TestEngine_ApprovalRoundTrip(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	instance, err = f.engine.ProcessApproval(t.Context(), instance.ID, "mgr-1", models.ActionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusInProgress, instance.Status)
	assert.Equal(t, 2, instance.CurrentStage)
	assert.Equal(t, "head-1", instance.CurrentApproverID)
	assert.Equal(t, models.ChainEntryApproved, instance.Chain[0].Status)

	instance, err = f.engine.ProcessApproval(t.Context(), instance.ID, "head-1", models.ActionApprove, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusApproved, instance.Status)
	assert.Empty(t, instance.CurrentApproverID)
	require.NotNil(t, instance.CompletedAt)

	// The final approval has no next stage; its history entry stays within
	// the stage range.
	last := instance.History[len(instance.History)-1]
	assert.Equal(t, 2, last.FromStage)
	assert.Equal(t, 2, last.ToStage)
}

func TestEngine_Rejection(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	instance, err = f.engine.ProcessApproval(t.Context(), instance.ID, "mgr-1", models.ActionReject, "too long")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusRejected, instance.Status)
	assert.Equal(t, models.ChainEntryRejected, instance.Chain[0].Status)
	assert.Empty(t, instance.CurrentApproverID)
	require.NotNil(t, instance.CompletedAt)

	// Rejection is terminal; the second stage never opens.
	_, err = f.engine.ProcessApproval(t.Context(), instance.ID, "head-1", models.ActionApprove, "")
	assert.ErrorIs(t, err, ErrWorkflowTerminal)
}

func TestEngine_UnauthorizedApprover(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	_, err = f.engine.ProcessApproval(t.Context(), instance.ID, "head-1", models.ActionApprove, "")
	assert.ErrorIs(t, err, ErrUnauthorizedApprover)
	assert.True(t, IsUnauthorized(err))
}

func TestEngine_InvalidAction(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	_, err = f.engine.ProcessApproval(t.Context(), instance.ID, "mgr-1", models.ActionDelegate, "")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestEngine_AutoApprovesEmptyStages(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.activateDefinition(t,
		&models.Stage{Number: 1, Name: "Compliance Review", Rule: models.RuleRoleBased,
			Config: map[string]any{"role": "compliance_officer"}},
		&models.Stage{Number: 2, Name: "Supervisor Review", Rule: models.RuleSupervisor},
	)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	// Nobody holds the compliance role, so stage 1 auto-approves.
	assert.Equal(t, models.InstanceStatusInProgress, instance.Status)
	assert.Equal(t, 2, instance.CurrentStage)
	assert.Equal(t, "mgr-1", instance.CurrentApproverID)

	require.Len(t, instance.Chain, 2)
	assert.Equal(t, models.ChainEntryApproved, instance.Chain[0].Status)
	assert.Equal(t, "emp-1", instance.Chain[0].ApproverID)
}

func TestEngine_AutoApprovesWholeWorkflow(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.activateDefinition(t,
		&models.Stage{Number: 1, Name: "Compliance Review", Rule: models.RuleRoleBased,
			Config: map[string]any{"role": "compliance_officer"}},
	)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusApproved, instance.Status)
	require.NotNil(t, instance.CompletedAt)

	// An instance terminal at creation still notifies subscribers of the
	// approved outcome.
	approvedPublished := false

	for _, call := range f.eventBus.Calls {
		if call.Method != "Publish" {
			continue
		}

		if _, ok := call.Arguments.Get(2).(events.WorkflowApproved); ok {
			approvedPublished = true
		}
	}

	assert.True(t, approvedPublished, "creation that completes the workflow emits the approved event")
}

func TestEngine_ProcessDelegation(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)
	f.directory.AddEmployee(&models.Employee{
		ID: "mgr-2", GradeCode: "M12", Department: "ENG",
		Status: models.EmploymentActive, IsSupervisor: true,
	})

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	instance, err = f.engine.ProcessDelegation(t.Context(), instance.ID, "mgr-1", "mgr-2", "on leave")
	require.NoError(t, err)

	// The stage does not advance; the delegate takes over the same entry.
	assert.Equal(t, 1, instance.CurrentStage)
	assert.Equal(t, "mgr-2", instance.CurrentApproverID)

	entry := instance.CurrentChainEntry()
	require.NotNil(t, entry)
	assert.Equal(t, models.ChainEntryDelegated, entry.Status)
	assert.Equal(t, "mgr-2", entry.DelegatedTo)
	assert.Equal(t, "mgr-2", entry.ApproverID)

	// The original approver can no longer act.
	_, err = f.engine.ProcessApproval(t.Context(), instance.ID, "mgr-1", models.ActionApprove, "")
	assert.ErrorIs(t, err, ErrUnauthorizedApprover)

	instance, err = f.engine.ProcessApproval(t.Context(), instance.ID, "mgr-2", models.ActionApprove, "ok")
	require.NoError(t, err)
	assert.Equal(t, 2, instance.CurrentStage)
}

func TestEngine_ProcessDelegationToSelf(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	_, err = f.engine.ProcessDelegation(t.Context(), instance.ID, "mgr-1", "mgr-1", "")
	assert.ErrorIs(t, err, ErrSelfDelegation)
}

func TestEngine_Cancel(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	instance, err = f.engine.CancelWorkflowInstance(t.Context(), instance.ID, "emp-1", "plans changed")
	require.NoError(t, err)

	assert.Equal(t, models.InstanceStatusCancelled, instance.Status)
	assert.Equal(t, "emp-1", instance.CancelledBy)
	assert.Equal(t, "plans changed", instance.CancelReason)
	require.NotNil(t, instance.CancelledAt)
	assert.Empty(t, instance.CurrentApproverID)

	_, err = f.engine.CancelWorkflowInstance(t.Context(), instance.ID, "emp-1", "again")
	assert.ErrorIs(t, err, ErrWorkflowTerminal)
}

func TestEngine_PendingApprovals(t *testing.T) {
	f := newEngineFixture(t)
	f.seedOrg()
	f.twoStageDefinition(t)

	instance, err := f.engine.CreateWorkflow(t.Context(), models.WorkflowTypeLeaveRequest, "emp-1", nil)
	require.NoError(t, err)

	pending, err := f.engine.PendingApprovals(t.Context(), "mgr-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, instance.ID, pending[0].ID)

	pending, err = f.engine.PendingApprovals(t.Context(), "head-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
