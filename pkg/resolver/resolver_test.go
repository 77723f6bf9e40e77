package resolver

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type policyStore struct {
	configs []*models.GradeApprovalConfig
}

func (s *policyStore) List(context.Context) ([]*models.GradeApprovalConfig, error) {
	return s.configs, nil
}

type fixture struct {
	resolver    *Resolver
	directory   *directory.Memory
	delegations *delegation.Registry
}

func newFixture(t *testing.T, configs ...*models.GradeApprovalConfig) *fixture {
	t.Helper()

	dir := directory.NewMemory()
	delegations := delegation.NewRegistry(file.NewDelegationRepository(t.TempDir()), slog.Default())

	policies := gradepolicy.NewCache(&policyStore{configs: configs}, slog.Default())
	require.NoError(t, policies.Refresh(t.Context()))

	return &fixture{
		resolver:    NewResolver(dir, policies, delegations, slog.Default()),
		directory:   dir,
		delegations: delegations,
	}
}

func (f *fixture) resolve(t *testing.T, employee *models.Employee, stage *models.Stage, payload map[string]any) []string {
	t.Helper()

	approvers, err := f.resolver.ResolveApproversForStage(t.Context(), employee, stage, models.WorkflowTypeLeaveRequest, payload)
	require.NoError(t, err)

	return approvers
}

func activeEmployee(id, grade, department string) *models.Employee {
	return &models.Employee{
		ID:         id,
		GradeCode:  grade,
		Department: department,
		Status:     models.EmploymentActive,
	}
}

func activeSupervisor(id, grade, department string) *models.Employee {
	supervisor := activeEmployee(id, grade, department)
	supervisor.IsSupervisor = true

	return supervisor
}

func TestResolver_Supervisor(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	requester.ReportsTo = "mgr-1"

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(activeSupervisor("mgr-1", "M12", "ENG"))

	stage := &models.Stage{Number: 1, Name: "Supervisor Review", Rule: models.RuleSupervisor}

	assert.Equal(t, []string{"mgr-1"}, f.resolve(t, requester, stage, nil))
}

func TestResolver_SupervisorFallsBackToDepartmentHead(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	requester.ReportsTo = "mgr-1"

	terminated := activeSupervisor("mgr-1", "M12", "ENG")
	terminated.Status = models.EmploymentTerminated

	head := activeEmployee("head-1", "M15", "ENG")
	head.IsDepartmentManager = true

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(terminated)
	f.directory.AddEmployee(head)

	stage := &models.Stage{Number: 1, Name: "Supervisor Review", Rule: models.RuleSupervisor}

	assert.Equal(t, []string{"head-1"}, f.resolve(t, requester, stage, nil),
		"terminated supervisors route to the department head")
}

func TestResolver_SupervisorDelegation(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	requester.ReportsTo = "mgr-1"

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(activeSupervisor("mgr-1", "M12", "ENG"))
	f.directory.AddEmployee(activeSupervisor("mgr-2", "M12", "ENG"))
	f.directory.AddEmployee(activeEmployee("emp-9", "E3", "ENG"))

	now := time.Now().UTC()

	_, err := f.delegations.Create(t.Context(), &models.Delegation{
		DelegatorID:   "mgr-1",
		DelegateID:    "mgr-2",
		WorkflowTypes: []models.WorkflowType{models.WorkflowTypeAll},
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	stage := &models.Stage{Number: 1, Name: "Supervisor Review", Rule: models.RuleSupervisor}

	assert.Equal(t, []string{"mgr-2"}, f.resolve(t, requester, stage, nil))
}

func TestResolver_SupervisorDelegationToNonSupervisor(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	requester.ReportsTo = "mgr-1"

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(activeSupervisor("mgr-1", "M12", "ENG"))
	f.directory.AddEmployee(activeEmployee("emp-9", "E3", "ENG"))

	now := time.Now().UTC()

	_, err := f.delegations.Create(t.Context(), &models.Delegation{
		DelegatorID:   "mgr-1",
		DelegateID:    "emp-9",
		WorkflowTypes: []models.WorkflowType{models.WorkflowTypeAll},
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	stage := &models.Stage{Number: 1, Name: "Supervisor Review", Rule: models.RuleSupervisor}

	assert.Equal(t, []string{"mgr-1"}, f.resolve(t, requester, stage, nil),
		"a delegate without supervisory standing does not substitute")
}

func TestResolver_ManagerialLevel(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	requester.ReportsTo = "lead-1"

	// Team lead has no supervisory flag; the chain walk skips them.
	lead := activeEmployee("lead-1", "S1", "ENG")
	lead.ReportsTo = "mgr-1"

	manager := activeSupervisor("mgr-1", "M12", "ENG")
	manager.ReportsTo = "dir-1"

	director := activeEmployee("dir-1", "M16", "ENG")
	director.IsDepartmentManager = true

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(lead)
	f.directory.AddEmployee(manager)
	f.directory.AddEmployee(director)

	levelOne := &models.Stage{Number: 1, Name: "Manager Review", Rule: models.RuleManagerialLevel,
		Config: map[string]any{"level": 1}}
	assert.Equal(t, []string{"mgr-1"}, f.resolve(t, requester, levelOne, nil))

	levelTwo := &models.Stage{Number: 1, Name: "Director Review", Rule: models.RuleManagerialLevel,
		Config: map[string]any{"level": 2}}
	assert.Equal(t, []string{"dir-1"}, f.resolve(t, requester, levelTwo, nil))

	// More hops requested than the chain provides settles on the top manager.
	levelFive := &models.Stage{Number: 1, Name: "Executive Review", Rule: models.RuleManagerialLevel,
		Config: map[string]any{"level": 5}}
	assert.Equal(t, []string{"dir-1"}, f.resolve(t, requester, levelFive, nil))
}

func TestResolver_ManagerialLevelDelegation(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	requester.ReportsTo = "mgr-1"

	manager := activeSupervisor("mgr-1", "M12", "ENG")
	manager.ReportsTo = "dir-1"

	director := activeEmployee("dir-1", "M16", "ENG")
	director.IsDepartmentManager = true

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(manager)
	f.directory.AddEmployee(director)
	f.directory.AddEmployee(activeSupervisor("sub-1", "M15", "ENG"))

	now := time.Now().UTC()

	// The director is out; their delegate takes over chain-walk resolution.
	_, err := f.delegations.Create(t.Context(), &models.Delegation{
		DelegatorID:   "dir-1",
		DelegateID:    "sub-1",
		WorkflowTypes: []models.WorkflowType{models.WorkflowTypeAll},
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	stage := &models.Stage{Number: 1, Name: "Director Review", Rule: models.RuleManagerialLevel,
		Config: map[string]any{"level": 2}}
	assert.Equal(t, []string{"sub-1"}, f.resolve(t, requester, stage, nil))

	// A delegation higher up the chain does not affect a shorter walk.
	levelOne := &models.Stage{Number: 1, Name: "Manager Review", Rule: models.RuleManagerialLevel,
		Config: map[string]any{"level": 1}}
	assert.Equal(t, []string{"mgr-1"}, f.resolve(t, requester, levelOne, nil))
}

func TestResolver_ManagerialLevelMissingConfig(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	f.directory.AddEmployee(requester)

	stage := &models.Stage{Number: 1, Name: "Manager Review", Rule: models.RuleManagerialLevel}

	_, err := f.resolver.ResolveApproversForStage(t.Context(), requester, stage, models.WorkflowTypeLeaveRequest, nil)
	assert.Error(t, err)
}

func TestResolver_DepartmentHead(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")

	head := activeEmployee("head-1", "M15", "ENG")
	head.IsDepartmentManager = true

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(head)
	f.directory.AddEmployee(activeSupervisor("mgr-1", "M12", "ENG"))

	stage := &models.Stage{Number: 1, Name: "Head Sign-off", Rule: models.RuleDepartmentHead}

	assert.Equal(t, []string{"head-1"}, f.resolve(t, requester, stage, nil))
}

func TestResolver_DepartmentHeadFallsBackToHighestSupervisor(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(activeSupervisor("mgr-a", "M12", "ENG"))
	f.directory.AddEmployee(activeSupervisor("mgr-b", "M14", "ENG"))

	stage := &models.Stage{Number: 1, Name: "Head Sign-off", Rule: models.RuleDepartmentHead}

	assert.Equal(t, []string{"mgr-b"}, f.resolve(t, requester, stage, nil),
		"without a flagged manager the highest-grade supervisor stands in")
}

func TestResolver_Finance(t *testing.T) {
	f := newFixture(t, &models.GradeApprovalConfig{
		GradeCode:        "E2",
		MaxApprovalLevel: "M12",
		Thresholds: []models.AmountThreshold{
			{Amount: 100000, RequiredLevel: "M13"},
		},
	})

	requester := activeEmployee("emp-1", "E2", "ENG")

	analyst := activeEmployee("fin-1", "M13", FinanceDepartmentCode)
	analyst.Role = "finance_analyst"

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(analyst)

	stage := &models.Stage{Number: 1, Name: "Finance Review", Rule: models.RuleFinance}

	approvers := f.resolve(t, requester, stage, map[string]any{"amount": 250000.0})
	assert.Equal(t, []string{"fin-1"}, approvers, "the amount maps to level M13 and its finance roles")
}

func TestResolver_FinanceFallsBackToFinanceSupervisors(t *testing.T) {
	f := newFixture(t, &models.GradeApprovalConfig{
		GradeCode:        "E2",
		MaxApprovalLevel: "M12",
	})

	requester := activeEmployee("emp-1", "E2", "ENG")

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(activeSupervisor("fin-sup", "M14", FinanceDepartmentCode))

	stage := &models.Stage{Number: 1, Name: "Finance Review", Rule: models.RuleFinance}

	approvers := f.resolve(t, requester, stage, map[string]any{"amount": 50000.0})
	assert.Equal(t, []string{"fin-sup"}, approvers,
		"with nobody at the required grade any finance supervisor qualifies")
}

func TestResolver_GradeBased(t *testing.T) {
	f := newFixture(t)

	f.directory.AddGrade(&models.Grade{Code: "M12", Level: 12})
	f.directory.AddGrade(&models.Grade{Code: "M13", Level: 13})
	f.directory.AddGrade(&models.Grade{Code: "M14", Level: 14})

	requester := activeEmployee("emp-1", "E2", "ENG")

	inRange := activeSupervisor("mgr-1", "M12", "ENG")

	managerLike := activeEmployee("mgr-2", "M13", "OPS")
	managerLike.Role = "manager"

	plain := activeEmployee("emp-2", "M13", "OPS")

	suspended := activeSupervisor("mgr-3", "M14", "OPS")
	suspended.Status = models.EmploymentSuspended

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(inRange)
	f.directory.AddEmployee(managerLike)
	f.directory.AddEmployee(plain)
	f.directory.AddEmployee(suspended)

	stage := &models.Stage{Number: 1, Name: "Management Review", Rule: models.RuleGradeBased,
		Config: map[string]any{"min_grade": "M12", "max_grade": "M14"}}

	assert.Equal(t, []string{"mgr-1", "mgr-2"}, f.resolve(t, requester, stage, nil))
}

func TestResolver_GradeBasedInvalidRange(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	f.directory.AddEmployee(requester)

	tests := []struct {
		name   string
		config map[string]any
	}{
		{name: "missing config", config: nil},
		{name: "unknown grade", config: map[string]any{"min_grade": "X1", "max_grade": "M14"}},
		{name: "inverted range", config: map[string]any{"min_grade": "M14", "max_grade": "M12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := &models.Stage{Number: 1, Name: "Management Review", Rule: models.RuleGradeBased, Config: tt.config}

			_, err := f.resolver.ResolveApproversForStage(t.Context(), requester, stage, models.WorkflowTypeLeaveRequest, nil)
			assert.Error(t, err)
		})
	}
}

func TestResolver_RoleBased(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")

	officer := activeEmployee("cmp-1", "S2", "LEG")
	officer.Role = "compliance_officer"

	formerOfficer := activeEmployee("cmp-2", "S2", "LEG")
	formerOfficer.Role = "compliance_officer"
	formerOfficer.Status = models.EmploymentTerminated

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(officer)
	f.directory.AddEmployee(formerOfficer)

	stage := &models.Stage{Number: 1, Name: "Compliance Review", Rule: models.RuleRoleBased,
		Config: map[string]any{"role": "compliance_officer"}}

	assert.Equal(t, []string{"cmp-1"}, f.resolve(t, requester, stage, nil))
}

func TestResolver_SpecificUser(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")

	f.directory.AddEmployee(requester)
	f.directory.AddEmployee(activeEmployee("ceo-1", "C1", "EXEC"))

	stage := &models.Stage{Number: 1, Name: "CEO Approval", Rule: models.RuleSpecificUser,
		Config: map[string]any{"user_id": "ceo-1"}}
	assert.Equal(t, []string{"ceo-1"}, f.resolve(t, requester, stage, nil))

	missing := &models.Stage{Number: 1, Name: "CEO Approval", Rule: models.RuleSpecificUser,
		Config: map[string]any{"user_id": "ghost-1"}}
	assert.Empty(t, f.resolve(t, requester, missing, nil),
		"a configured user absent from the directory resolves empty")
}

func TestResolver_UnknownRule(t *testing.T) {
	f := newFixture(t)

	requester := activeEmployee("emp-1", "E2", "ENG")
	f.directory.AddEmployee(requester)

	stage := &models.Stage{Number: 1, Name: "Mystery", Rule: models.ApprovalRule("coin_flip")}

	assert.Empty(t, f.resolve(t, requester, stage, nil))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "a", "", "c", "b"}))
	assert.Empty(t, dedupe(nil))
}
