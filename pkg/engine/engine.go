package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/approvio/approvio/pkg/definitions"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/directory"
	"github.com/approvio/approvio/pkg/eventbus"
	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/approvio/approvio/pkg/resolver"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine orchestrates the workflow instance state machine: creation, stage
// advancement, approval, rejection, delegation and cancellation. All
// operations are synchronous read-modify-write sequences guarded by the
// instance revision; a losing concurrent writer gets a conflict error.
type Engine struct {
	instances   persistence.InstanceRepository
	definitions *definitions.Registry
	resolver    *resolver.Resolver
	delegations *delegation.Registry
	directory   directory.Directory
	policies    *gradepolicy.Cache
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewEngine wires the engine from its collaborators.
func NewEngine(
	instances persistence.InstanceRepository,
	definitionRegistry *definitions.Registry,
	approverResolver *resolver.Resolver,
	delegationRegistry *delegation.Registry,
	dir directory.Directory,
	policies *gradepolicy.Cache,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		instances:   instances,
		definitions: definitionRegistry,
		resolver:    approverResolver,
		delegations: delegationRegistry,
		directory:   dir,
		policies:    policies,
		eventBus:    eventBus,
		tracer:      otel.Tracer("approvio.engine"),
		logger:      logger,
	}
}

// CreateWorkflow creates a workflow instance for the requester: resolves the
// active definition for (type, requester's department), snapshots the
// requester's organizational context, enriches the payload with grade facts,
// and advances into the first stage. Nothing is persisted when any step fails.
func (e *Engine) CreateWorkflow(
	ctx context.Context,
	workflowType models.WorkflowType,
	requesterID string,
	payload map[string]any,
) (*models.WorkflowInstance, error) {
	ctx, span := e.tracer.Start(ctx, "engine.create_workflow", trace.WithAttributes(
		attribute.String("workflow.type", string(workflowType)),
		attribute.String("workflow.requester", requesterID),
	))
	defer span.End()

	if !workflowType.IsValid() {
		return nil, fmt.Errorf("%w: %s", definitions.ErrUnknownWorkflowType, workflowType)
	}

	requester, err := e.directory.EmployeeByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	gradeLevel := gradepolicy.LevelRank(requester.GradeCode)
	if grade, gradeErr := e.directory.GradeByCode(ctx, requester.GradeCode); gradeErr == nil {
		gradeLevel = grade.Level
	}

	definition, err := e.definitions.ActiveDefinition(ctx, workflowType, requester.Department)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = make(map[string]any)
	}

	payload["requester_grade"] = requester.GradeCode
	payload["requester_grade_level"] = gradeLevel

	now := time.Now().UTC()

	instance := &models.WorkflowInstance{
		ID:                uuid.New().String(),
		WorkflowType:      workflowType,
		DefinitionID:      definition.ID,
		DefinitionVersion: definition.Version,
		RequesterID:       requesterID,
		Status:            models.InstanceStatusSubmitted,
		Payload:           payload,
		Context: &models.WorkflowContext{
			RequesterID:  requesterID,
			GradeCode:    requester.GradeCode,
			GradeLevel:   gradeLevel,
			Department:   requester.Department,
			SupervisorID: requester.ReportsTo,
			CreatedAt:    now,
		},
		Chain:        make([]*models.ApprovalChainEntry, 0, len(definition.Stages)),
		History:      make([]*models.ApprovalHistoryEntry, 0),
		CurrentStage: 0,
		TotalStages:  len(definition.Stages),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	instance.AppendHistory(0, 0, models.ActionSubmit, requesterID, "workflow submitted")

	err = e.advanceToNextStage(ctx, instance, definition, requester)
	if err != nil {
		return nil, err
	}

	err = e.instances.Save(ctx, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to persist workflow instance: %w", err)
	}

	e.logger.InfoContext(ctx, "Workflow instance created",
		"instance_id", instance.ID,
		"workflow_type", workflowType,
		"requester", requesterID,
		"total_stages", instance.TotalStages,
		"status", instance.Status)

	e.publishCreated(ctx, instance)

	// Every stage may have auto-approved during creation; the terminal
	// outcome event must still reach subscribers.
	if instance.Status == models.InstanceStatusApproved {
		e.publishApproved(ctx, instance)
	} else {
		e.publishAdvancement(ctx, instance)
	}

	return instance, nil
}

// advanceToNextStage moves the instance into its next actionable stage,
// auto-approving stages that resolve to zero approvers. The loop is bounded
// by the definition's stage count; exceeding it is a configuration fault.
func (e *Engine) advanceToNextStage(
	ctx context.Context,
	instance *models.WorkflowInstance,
	definition *models.WorkflowDefinition,
	requester *models.Employee,
) error {
	for iterations := 0; ; iterations++ {
		if iterations > instance.TotalStages {
			return fmt.Errorf("%w: instance %s", ErrAdvanceLoop, instance.ID)
		}

		if instance.CurrentStage >= instance.TotalStages {
			e.complete(instance)

			return nil
		}

		stage := definition.StageByNumber(instance.CurrentStage + 1)
		if stage == nil {
			return fmt.Errorf("%w: definition %s has no stage %d",
				ErrAdvanceLoop, definition.ID, instance.CurrentStage+1)
		}

		approvers, err := e.resolver.ResolveApproversForStage(ctx, requester, stage, instance.WorkflowType, instance.Payload)
		if err != nil {
			return fmt.Errorf("failed to resolve approvers for stage %d: %w", stage.Number, err)
		}

		if len(approvers) == 0 {
			// Either a deliberate no-gate configuration or a policy gap; the
			// stage is skipped rather than blocking the workflow.
			e.logger.WarnContext(ctx, "No approvers resolved for stage, auto-approving",
				"instance_id", instance.ID,
				"stage", stage.Number,
				"rule", stage.Rule)

			e.autoApproveStage(instance, stage)

			continue
		}

		instance.CurrentStage = stage.Number
		instance.CurrentApproverID = approvers[0]
		instance.Status = models.InstanceStatusInProgress
		instance.Chain = append(instance.Chain, &models.ApprovalChainEntry{
			ApproverID:  approvers[0],
			StageNumber: stage.Number,
			StageName:   stage.Name,
			Status:      models.ChainEntryPending,
		})
		instance.UpdatedAt = time.Now().UTC()

		return nil
	}
}

func (e *Engine) autoApproveStage(instance *models.WorkflowInstance, stage *models.Stage) {
	now := time.Now().UTC()

	instance.CurrentStage = stage.Number
	instance.Chain = append(instance.Chain, &models.ApprovalChainEntry{
		ApproverID:  instance.RequesterID,
		StageNumber: stage.Number,
		StageName:   stage.Name,
		Status:      models.ChainEntryApproved,
		Action:      models.ActionApprove,
		Comments:    "auto-approved: no approvers resolved for this stage",
		ActedAt:     &now,
	})
	instance.AppendHistory(stage.Number-1, stage.Number, models.ActionApprove, instance.RequesterID,
		"auto-approved: no approvers resolved")
	instance.UpdatedAt = now
}

func (e *Engine) complete(instance *models.WorkflowInstance) {
	now := time.Now().UTC()

	instance.Status = models.InstanceStatusApproved
	instance.CurrentApproverID = ""
	instance.CompletedAt = &now
	instance.UpdatedAt = now
}

// ProcessApproval applies an approve or reject decision by the assigned
// approver of the current stage. Approval advances the instance; rejection is
// terminal and short-circuits all remaining stages.
func (e *Engine) ProcessApproval(
	ctx context.Context,
	instanceID, approverID string,
	action models.ApprovalAction,
	comments string,
) (*models.WorkflowInstance, error) {
	ctx, span := e.tracer.Start(ctx, "engine.process_approval", trace.WithAttributes(
		attribute.String("workflow.instance", instanceID),
		attribute.String("workflow.approver", approverID),
		attribute.String("workflow.action", string(action)),
	))
	defer span.End()

	if action != models.ActionApprove && action != models.ActionReject {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}

	instance, entry, err := e.actionableEntry(ctx, instanceID, approverID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	entry.Action = action
	entry.Comments = comments
	entry.ActedAt = &now

	if action == models.ActionReject {
		entry.Status = models.ChainEntryRejected
		instance.Status = models.InstanceStatusRejected
		instance.CurrentApproverID = ""
		instance.CompletedAt = &now
		instance.UpdatedAt = now
		instance.AppendHistory(instance.CurrentStage, instance.CurrentStage, models.ActionReject, approverID, comments)

		err = e.instances.Update(ctx, instance)
		if err != nil {
			return nil, err
		}

		e.logger.InfoContext(ctx, "Workflow instance rejected",
			"instance_id", instanceID, "stage", entry.StageNumber, "approver", approverID)

		e.publishRejected(ctx, instance, approverID, comments)

		return instance, nil
	}

	entry.Status = models.ChainEntryApproved

	fromStage := instance.CurrentStage

	// The final approval has no next stage; the history entry stays within
	// the definition's stage range.
	toStage := fromStage + 1
	if toStage > instance.TotalStages {
		toStage = instance.TotalStages
	}

	instance.AppendHistory(fromStage, toStage, models.ActionApprove, approverID, comments)

	definition, err := e.definitions.ByID(ctx, instance.DefinitionID)
	if err != nil {
		return nil, err
	}

	requester, err := e.directory.EmployeeByID(ctx, instance.RequesterID)
	if err != nil {
		return nil, err
	}

	err = e.advanceToNextStage(ctx, instance, definition, requester)
	if err != nil {
		return nil, err
	}

	err = e.instances.Update(ctx, instance)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow stage approved",
		"instance_id", instanceID,
		"stage", entry.StageNumber,
		"approver", approverID,
		"status", instance.Status)

	if instance.Status == models.InstanceStatusApproved {
		e.publishApproved(ctx, instance)
	} else {
		e.publishAdvancement(ctx, instance)
	}

	return instance, nil
}

// ProcessDelegation rewrites the current chain entry's approver to the
// delegate. The workflow does not advance; the delegate must still act on the
// same stage.
func (e *Engine) ProcessDelegation(
	ctx context.Context,
	instanceID, approverID, delegateToID, comments string,
) (*models.WorkflowInstance, error) {
	ctx, span := e.tracer.Start(ctx, "engine.process_delegation", trace.WithAttributes(
		attribute.String("workflow.instance", instanceID),
		attribute.String("workflow.approver", approverID),
		attribute.String("workflow.delegate", delegateToID),
	))
	defer span.End()

	if approverID == delegateToID {
		return nil, ErrSelfDelegation
	}

	instance, entry, err := e.actionableEntry(ctx, instanceID, approverID)
	if err != nil {
		return nil, err
	}

	delegate, err := e.directory.EmployeeByID(ctx, delegateToID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	entry.Status = models.ChainEntryDelegated
	entry.Action = models.ActionDelegate
	entry.Comments = comments
	entry.ActedAt = &now
	entry.DelegatedTo = delegate.ID
	entry.ApproverID = delegate.ID

	instance.CurrentApproverID = delegate.ID
	instance.UpdatedAt = now
	instance.AppendHistory(instance.CurrentStage, instance.CurrentStage, models.ActionDelegate, approverID,
		fmt.Sprintf("delegated to %s: %s", delegateToID, comments))

	err = e.instances.Update(ctx, instance)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow stage delegated",
		"instance_id", instanceID,
		"stage", entry.StageNumber,
		"delegated_by", approverID,
		"delegated_to", delegateToID)

	e.publishDelegated(ctx, instance, approverID, delegateToID)

	return instance, nil
}

// CancelWorkflowInstance cancels a non-terminal instance, recording the actor
// and reason. No further transitions are permitted afterward.
func (e *Engine) CancelWorkflowInstance(
	ctx context.Context,
	instanceID, actorID, reason string,
) (*models.WorkflowInstance, error) {
	ctx, span := e.tracer.Start(ctx, "engine.cancel_workflow", trace.WithAttributes(
		attribute.String("workflow.instance", instanceID),
		attribute.String("workflow.actor", actorID),
	))
	defer span.End()

	instance, err := e.instances.ByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowTerminal, instanceID, instance.Status)
	}

	now := time.Now().UTC()

	if entry := instance.CurrentChainEntry(); entry != nil &&
		(entry.Status == models.ChainEntryPending || entry.Status == models.ChainEntryDelegated) {
		entry.Status = models.ChainEntryRejected
		entry.Action = models.ActionCancel
		entry.Comments = reason
		entry.ActedAt = &now
	}

	instance.Status = models.InstanceStatusCancelled
	instance.CurrentApproverID = ""
	instance.CancelledBy = actorID
	instance.CancelReason = reason
	instance.CancelledAt = &now
	instance.UpdatedAt = now
	instance.AppendHistory(instance.CurrentStage, instance.CurrentStage, models.ActionCancel, actorID, reason)

	err = e.instances.Update(ctx, instance)
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Workflow instance cancelled",
		"instance_id", instanceID, "actor", actorID)

	e.publishCancelled(ctx, instance)

	return instance, nil
}

// actionableEntry loads the instance and authorizes the approver against the
// current chain entry.
func (e *Engine) actionableEntry(ctx context.Context, instanceID, approverID string) (*models.WorkflowInstance, *models.ApprovalChainEntry, error) {
	instance, err := e.instances.ByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	if instance.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: %s is %s", ErrWorkflowTerminal, instanceID, instance.Status)
	}

	entry := instance.CurrentChainEntry()
	if entry == nil || (entry.Status != models.ChainEntryPending && entry.Status != models.ChainEntryDelegated) {
		return nil, nil, fmt.Errorf("%w: %s", ErrWorkflowNotPending, instanceID)
	}

	if entry.ApproverID != approverID {
		return nil, nil, fmt.Errorf("%w: instance %s stage %d", ErrUnauthorizedApprover, instanceID, entry.StageNumber)
	}

	return instance, entry, nil
}

// InstanceByID returns one workflow instance.
func (e *Engine) InstanceByID(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	return e.instances.ByID(ctx, instanceID)
}

// PendingApprovals returns the in-progress instances waiting on the approver.
func (e *Engine) PendingApprovals(ctx context.Context, approverID string) ([]*models.WorkflowInstance, error) {
	return e.instances.PendingByApprover(ctx, approverID)
}

// DelegatedApprovals returns the in-progress instances whose current stage was
// delegated to the employee.
func (e *Engine) DelegatedApprovals(ctx context.Context, delegateID string) ([]*models.WorkflowInstance, error) {
	return e.instances.DelegatedTo(ctx, delegateID)
}

// InstancesForUser returns the requester's instances, filtered and paginated.
func (e *Engine) InstancesForUser(ctx context.Context, userID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	return e.instances.ByRequester(ctx, userID, opts)
}
