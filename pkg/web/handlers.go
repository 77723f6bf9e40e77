// Package web provides HTTP handlers and REST API endpoints for approval workflows.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/approvio/approvio/pkg/definitions"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/engine"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// GradePolicyStore abstracts where grade approval configs are written; both
// the persistence repositories and the Redis store satisfy it.
type GradePolicyStore interface {
	Save(ctx context.Context, config *models.GradeApprovalConfig) error
	List(ctx context.Context) ([]*models.GradeApprovalConfig, error)
}

type APIHandlers struct {
	engine      *engine.Engine
	definitions *definitions.Registry
	delegations *delegation.Registry
	policies    *gradepolicy.Cache
	policyStore GradePolicyStore
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	approvalEngine *engine.Engine,
	definitionRegistry *definitions.Registry,
	delegationRegistry *delegation.Registry,
	policies *gradepolicy.Cache,
	policyStore GradePolicyStore,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      approvalEngine,
		definitions: definitionRegistry,
		delegations: delegationRegistry,
		policies:    policies,
		policyStore: policyStore,
		persistence: persistence,
		validator:   validator,
	}
}

// Workflow instance endpoints.

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.CreateWorkflow(c.Context(), models.WorkflowType(req.WorkflowType), req.RequesterID, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(instance)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	instance, err := h.engine.InstanceByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) ListWorkflows(c fiber.Ctx) error {
	requesterID := c.Query("requester_id")
	if requesterID == "" {
		return badRequest(c, "requester_id query parameter is required")
	}

	opts, err := parseListOptions(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	instances, err := h.engine.InstancesForUser(c.Context(), requesterID, *opts)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": instances,
		"pagination": fiber.Map{
			"limit":  opts.Limit,
			"offset": opts.Offset,
		},
	})
}

func parseListOptions(c fiber.Ctx) (*persistence.ListInstancesOptions, error) {
	opts := &persistence.ListInstancesOptions{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		opts.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		opts.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.InstanceStatus(statusStr)
		opts.Status = &status
	}

	if typeStr := c.Query("workflow_type"); typeStr != "" {
		workflowType := models.WorkflowType(typeStr)
		opts.WorkflowType = &workflowType
	}

	return opts, nil
}

func (h *APIHandlers) DecideWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req DecisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.ProcessApproval(c.Context(), id, req.ApproverID, models.ApprovalAction(req.Action), req.Comments)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) DelegateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req DelegateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.ProcessDelegation(c.Context(), id, req.ApproverID, req.DelegateTo, req.Comments)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Instance ID is required")
	}

	var req CancelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	instance, err := h.engine.CancelWorkflowInstance(c.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

// Approval queue endpoints.

func (h *APIHandlers) PendingApprovals(c fiber.Ctx) error {
	approverID := c.Query("approver_id")
	if approverID == "" {
		return badRequest(c, "approver_id query parameter is required")
	}

	instances, err := h.engine.PendingApprovals(c.Context(), approverID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"approvals": instances})
}

func (h *APIHandlers) DelegatedApprovals(c fiber.Ctx) error {
	delegateID := c.Query("delegate_id")
	if delegateID == "" {
		return badRequest(c, "delegate_id query parameter is required")
	}

	instances, err := h.engine.DelegatedApprovals(c.Context(), delegateID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"approvals": instances})
}

// Delegation endpoints.

func (h *APIHandlers) CreateDelegation(c fiber.Ctx) error {
	var req CreateDelegationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.delegations.Create(c.Context(), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ListDelegations(c fiber.Ctx) error {
	if delegatorID := c.Query("delegator_id"); delegatorID != "" {
		delegations, err := h.delegations.ActiveDelegations(c.Context(), delegatorID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"delegations": delegations})
	}

	if delegateID := c.Query("delegate_id"); delegateID != "" {
		delegations, err := h.delegations.DelegationsTo(c.Context(), delegateID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(fiber.Map{"delegations": delegations})
	}

	return badRequest(c, "delegator_id or delegate_id query parameter is required")
}

func (h *APIHandlers) RevokeDelegation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Delegation ID is required")
	}

	var req RevokeDelegationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	err := h.delegations.Revoke(c.Context(), id, req.RevokedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Definition administration endpoints.

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	var req DefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.definitions.Create(c.Context(), req.ToModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	definition, err := h.definitions.ByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) ListDefinitions(c fiber.Ctx) error {
	all, err := h.definitions.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"definitions": all})
}

func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	var req DefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition := req.ToModel()
	definition.ID = id

	updated, err := h.definitions.Update(c.Context(), definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ActivateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	activated, err := h.definitions.Activate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) DeactivateDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	deactivated, err := h.definitions.Deactivate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deactivated)
}

// Grade policy endpoints.

func (h *APIHandlers) SaveGradePolicy(c fiber.Ctx) error {
	gradeCode := c.Params("gradeCode")
	if gradeCode == "" {
		return badRequest(c, "Grade code is required")
	}

	var req SaveGradePolicyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	config := req.ToModel(gradeCode)

	err := h.policyStore.Save(c.Context(), config)
	if err != nil {
		return handleServiceError(c, err)
	}

	// Saved policies only take effect after a cache refresh.
	err = h.policies.Refresh(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(config)
}

func (h *APIHandlers) ListGradePolicies(c fiber.Ctx) error {
	configs, err := h.policyStore.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"grade_policies": configs})
}

func (h *APIHandlers) RefreshGradePolicies(c fiber.Ctx) error {
	err := h.policies.Refresh(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "refreshed",
		"size":    h.policies.Size(),
		"refresh": time.Now().UTC(),
	})
}

// HealthCheck reports persistence and policy cache health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Approvio API is healthy"
	httpStatus := http.StatusOK

	persistenceCheck := "ok"
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		persistenceCheck = err.Error()
		status = "unhealthy"
		message = "Approvio API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence":        persistenceCheck,
			"grade_policy_cache": h.policies.Size(),
		},
		"timestamp": time.Now().UTC(),
	})
}
