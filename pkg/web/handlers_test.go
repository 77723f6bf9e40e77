package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/approvio/approvio/pkg/definitions"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/engine"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence/file"
	"github.com/approvio/approvio/pkg/resolver"
	"github.com/approvio/approvio/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *directory.Memory) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	logger := slog.Default()

	definitionRegistry := definitions.NewRegistry(persistence.Definitions(), logger)
	delegationRegistry := delegation.NewRegistry(persistence.Delegations(), logger)

	policies := gradepolicy.NewCache(persistence.GradePolicies(), logger)
	require.NoError(t, policies.Refresh(t.Context()))

	dir := directory.NewMemory()
	approverResolver := resolver.NewResolver(dir, policies, delegationRegistry, logger)

	approvalEngine := engine.NewEngine(
		persistence.Instances(), definitionRegistry, approverResolver,
		delegationRegistry, dir, policies, nil, logger)

	handlers := web.NewAPIHandlers(
		approvalEngine, definitionRegistry, delegationRegistry,
		policies, persistence.GradePolicies(), persistence,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/", handlers.ListWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Post("/:id/decision", handlers.DecideWorkflow)
	w.Post("/:id/delegate", handlers.DelegateWorkflow)
	w.Post("/:id/cancel", handlers.CancelWorkflow)

	approvals := app.Group("/approvals")
	approvals.Get("/pending", handlers.PendingApprovals)
	approvals.Get("/delegated", handlers.DelegatedApprovals)

	d := app.Group("/delegations")
	d.Post("/", handlers.CreateDelegation)
	d.Get("/", handlers.ListDelegations)
	d.Delete("/:id", handlers.RevokeDelegation)

	defs := app.Group("/definitions")
	defs.Post("/", handlers.CreateDefinition)
	defs.Get("/", handlers.ListDefinitions)
	defs.Get("/:id", handlers.GetDefinition)
	defs.Put("/:id", handlers.UpdateDefinition)
	defs.Post("/:id/activate", handlers.ActivateDefinition)
	defs.Post("/:id/deactivate", handlers.DeactivateDefinition)

	policiesGroup := app.Group("/grade-policies")
	policiesGroup.Get("/", handlers.ListGradePolicies)
	policiesGroup.Put("/:gradeCode", handlers.SaveGradePolicy)
	policiesGroup.Post("/refresh", handlers.RefreshGradePolicies)

	app.Get("/health", handlers.HealthCheck)

	return app, dir
}

func seedApprovalOrg(dir *directory.Memory) {
	dir.AddEmployee(&models.Employee{
		ID: "emp-1", GradeCode: "E2", Department: "ENG", ReportsTo: "mgr-1",
		Status: models.EmploymentActive,
	})
	dir.AddEmployee(&models.Employee{
		ID: "mgr-1", GradeCode: "M12", Department: "ENG",
		Status: models.EmploymentActive, IsSupervisor: true,
	})
}

func doJSON(t *testing.T, app *fiber.App, method, url string, payload any) *http.Response {
	t.Helper()

	var body io.Reader

	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var value T

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &value))

	return value
}

// activateLeaveDefinition creates and activates a one-stage supervisor
// definition over the API itself.
func activateLeaveDefinition(t *testing.T, app *fiber.App) string {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/definitions/", web.DefinitionRequest{
		Name:         "Leave Approval",
		WorkflowType: string(models.WorkflowTypeLeaveRequest),
		Department:   models.DepartmentAll,
		Stages: []web.StageRequest{
			{Number: 1, Name: "Supervisor Review", Rule: string(models.RuleSupervisor)},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decodeBody[models.WorkflowDefinition](t, resp)

	resp = doJSON(t, app, http.MethodPost, "/definitions/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return created.ID
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	app, dir := setupTestApp(t)
	seedApprovalOrg(dir)
	activateLeaveDefinition(t, app)

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				WorkflowType: string(models.WorkflowTypeLeaveRequest),
				RequesterID:  "emp-1",
				Payload:      map[string]any{"days": 3},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "validation error - missing requester",
			requestBody: web.CreateWorkflowRequest{
				WorkflowType: string(models.WorkflowTypeLeaveRequest),
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown workflow type",
			requestBody: web.CreateWorkflowRequest{
				WorkflowType: "bonus_request",
				RequesterID:  "emp-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown requester",
			requestBody: web.CreateWorkflowRequest{
				WorkflowType: string(models.WorkflowTypeLeaveRequest),
				RequesterID:  "ghost-1",
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/workflows/", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				instance := decodeBody[models.WorkflowInstance](t, resp)
				assert.Equal(t, models.InstanceStatusInProgress, instance.Status)
				assert.Equal(t, "mgr-1", instance.CurrentApproverID)
				assert.NotEmpty(t, instance.ID)
			}
		})
	}
}

func TestAPIHandlers_DecideWorkflow(t *testing.T) {
	app, dir := setupTestApp(t)
	seedApprovalOrg(dir)
	activateLeaveDefinition(t, app)

	resp := doJSON(t, app, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		WorkflowType: string(models.WorkflowTypeLeaveRequest),
		RequesterID:  "emp-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	instance := decodeBody[models.WorkflowInstance](t, resp)

	resp = doJSON(t, app, http.MethodPost, "/workflows/"+instance.ID+"/decision", web.DecisionRequest{
		ApproverID: "emp-1", Action: "approve",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "only the assigned approver may decide")

	resp = doJSON(t, app, http.MethodPost, "/workflows/"+instance.ID+"/decision", web.DecisionRequest{
		ApproverID: "mgr-1", Action: "escalate",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/workflows/"+instance.ID+"/decision", web.DecisionRequest{
		ApproverID: "mgr-1", Action: "approve", Comments: "enjoy",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	decided := decodeBody[models.WorkflowInstance](t, resp)
	assert.Equal(t, models.InstanceStatusApproved, decided.Status)

	// The instance is terminal now.
	resp = doJSON(t, app, http.MethodPost, "/workflows/"+instance.ID+"/decision", web.DecisionRequest{
		ApproverID: "mgr-1", Action: "approve",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	app, dir := setupTestApp(t)
	seedApprovalOrg(dir)
	activateLeaveDefinition(t, app)

	resp := doJSON(t, app, http.MethodGet, "/workflows/wf-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		WorkflowType: string(models.WorkflowTypeLeaveRequest),
		RequesterID:  "emp-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	instance := decodeBody[models.WorkflowInstance](t, resp)

	resp = doJSON(t, app, http.MethodGet, "/workflows/"+instance.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeBody[models.WorkflowInstance](t, resp)
	assert.Equal(t, instance.ID, fetched.ID)

	resp = doJSON(t, app, http.MethodGet, "/workflows/?requester_id=emp-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/workflows/", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "requester_id is required for listing")
}

func TestAPIHandlers_PendingApprovals(t *testing.T) {
	app, dir := setupTestApp(t)
	seedApprovalOrg(dir)
	activateLeaveDefinition(t, app)

	resp := doJSON(t, app, http.MethodGet, "/approvals/pending", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/workflows/", web.CreateWorkflowRequest{
		WorkflowType: string(models.WorkflowTypeLeaveRequest),
		RequesterID:  "emp-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/approvals/pending?approver_id=mgr-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[map[string][]models.WorkflowInstance](t, resp)
	assert.Len(t, result["approvals"], 1)
}

func TestAPIHandlers_Delegations(t *testing.T) {
	app, _ := setupTestApp(t)

	now := time.Now().UTC()

	resp := doJSON(t, app, http.MethodPost, "/delegations/", web.CreateDelegationRequest{
		DelegatorID:   "mgr-1",
		DelegateID:    "mgr-2",
		WorkflowTypes: []string{string(models.WorkflowTypeAll)},
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.Delegation](t, resp)

	resp = doJSON(t, app, http.MethodPost, "/delegations/", web.CreateDelegationRequest{
		DelegatorID:   "mgr-1",
		DelegateID:    "mgr-1",
		WorkflowTypes: []string{string(models.WorkflowTypeAll)},
		StartDate:     now,
		EndDate:       now.Add(24 * time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "self-delegation is rejected")

	resp = doJSON(t, app, http.MethodGet, "/delegations/?delegator_id=mgr-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeBody[map[string][]models.Delegation](t, resp)
	assert.Len(t, listed["delegations"], 1)

	resp = doJSON(t, app, http.MethodDelete, "/delegations/"+created.ID, web.RevokeDelegationRequest{
		RevokedBy: "hr-admin",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/delegations/del-missing", web.RevokeDelegationRequest{
		RevokedBy: "hr-admin",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_Definitions(t *testing.T) {
	app, _ := setupTestApp(t)

	definitionID := activateLeaveDefinition(t, app)

	resp := doJSON(t, app, http.MethodGet, "/definitions/"+definitionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeBody[models.WorkflowDefinition](t, resp)
	assert.True(t, fetched.Active)

	// Active definitions are immutable.
	resp = doJSON(t, app, http.MethodPut, "/definitions/"+definitionID, web.DefinitionRequest{
		Name:         "Leave Approval v2",
		WorkflowType: string(models.WorkflowTypeLeaveRequest),
		Department:   models.DepartmentAll,
		Stages: []web.StageRequest{
			{Number: 1, Name: "Supervisor Review", Rule: string(models.RuleSupervisor)},
		},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/definitions/"+definitionID+"/deactivate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/definitions/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeBody[map[string][]models.WorkflowDefinition](t, resp)
	assert.Len(t, listed["definitions"], 1)
}

func TestAPIHandlers_GradePolicies(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodPut, "/grade-policies/E2", web.SaveGradePolicyRequest{
		MaxApprovalLevel: "M12",
		Thresholds: []models.AmountThreshold{
			{Amount: 100000, RequiredLevel: "M13"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved := decodeBody[models.GradeApprovalConfig](t, resp)
	assert.Equal(t, "E2", saved.GradeCode)
	assert.Equal(t, "M12", saved.MaxApprovalLevel)

	resp = doJSON(t, app, http.MethodGet, "/grade-policies/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decodeBody[map[string][]models.GradeApprovalConfig](t, resp)
	assert.Len(t, listed["grade_policies"], 1)

	resp = doJSON(t, app, http.MethodPost, "/grade-policies/refresh", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
