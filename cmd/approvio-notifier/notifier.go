// Package main provides the Approvio notification consumer.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/approvio/approvio/pkg/eventbus"
	"github.com/approvio/approvio/pkg/events"
)

// NotifierManager consumes workflow lifecycle events and fans them out as
// notifications. Delivery is log-based here; channel integrations hang off
// the same handlers.
type NotifierManager struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
}

func NewNotifierManager(id string, eventBus eventbus.EventBus, logger *slog.Logger) *NotifierManager {
	return &NotifierManager{
		id:       id,
		logger:   logger.With("module", "approvio-notifier", "notifier_id", id),
		eventBus: eventBus,
	}
}

func (n *NotifierManager) Start(ctx context.Context) error {
	n.logger.InfoContext(ctx, "Starting notifier manager")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.WorkflowCreatedEvent:       n.handleCreated,
		events.WorkflowStageAdvancedEvent: n.handleStageAdvanced,
		events.WorkflowDelegatedEvent:     n.handleDelegated,
		events.WorkflowApprovedEvent:      n.handleApproved,
		events.WorkflowRejectedEvent:      n.handleRejected,
		events.WorkflowCancelledEvent:     n.handleCancelled,
	}

	for eventType, handler := range handlers {
		err := n.eventBus.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	err := n.eventBus.Subscribe(ctx)
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	n.logger.InfoContext(ctx, "Notifier started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	n.logger.InfoContext(ctx, "Shutting down notifier...")

	return nil
}

func (n *NotifierManager) handleCreated(ctx context.Context, event any) error {
	created, ok := event.(*events.WorkflowCreated)
	if !ok {
		n.logger.ErrorContext(ctx, "Invalid event type for WorkflowCreated")

		return nil
	}

	n.logger.InfoContext(ctx, "Workflow submitted",
		"instance_id", created.InstanceID,
		"workflow_type", created.WorkflowType,
		"requester_id", created.RequesterID,
		"total_stages", created.TotalStages,
	)

	return nil
}

func (n *NotifierManager) handleStageAdvanced(ctx context.Context, event any) error {
	advanced, ok := event.(*events.WorkflowStageAdvanced)
	if !ok {
		n.logger.ErrorContext(ctx, "Invalid event type for WorkflowStageAdvanced")

		return nil
	}

	if advanced.AutoApproved {
		n.logger.InfoContext(ctx, "Stage auto-approved",
			"instance_id", advanced.InstanceID,
			"stage_number", advanced.StageNumber,
			"stage_name", advanced.StageName,
		)

		return nil
	}

	// The assignee notification: this is where mail or chat hooks plug in.
	n.logger.InfoContext(ctx, "Approval requested",
		"instance_id", advanced.InstanceID,
		"stage_number", advanced.StageNumber,
		"stage_name", advanced.StageName,
		"approver_id", advanced.ApproverID,
	)

	return nil
}

func (n *NotifierManager) handleDelegated(ctx context.Context, event any) error {
	delegated, ok := event.(*events.WorkflowDelegated)
	if !ok {
		n.logger.ErrorContext(ctx, "Invalid event type for WorkflowDelegated")

		return nil
	}

	n.logger.InfoContext(ctx, "Approval delegated",
		"instance_id", delegated.InstanceID,
		"stage_number", delegated.StageNumber,
		"delegated_by", delegated.DelegatedBy,
		"delegated_to", delegated.DelegatedTo,
	)

	return nil
}

func (n *NotifierManager) handleApproved(ctx context.Context, event any) error {
	approved, ok := event.(*events.WorkflowApproved)
	if !ok {
		n.logger.ErrorContext(ctx, "Invalid event type for WorkflowApproved")

		return nil
	}

	n.logger.InfoContext(ctx, "Workflow approved",
		"instance_id", approved.InstanceID,
		"workflow_type", approved.WorkflowType,
		"requester_id", approved.RequesterID,
	)

	return nil
}

func (n *NotifierManager) handleRejected(ctx context.Context, event any) error {
	rejected, ok := event.(*events.WorkflowRejected)
	if !ok {
		n.logger.ErrorContext(ctx, "Invalid event type for WorkflowRejected")

		return nil
	}

	n.logger.InfoContext(ctx, "Workflow rejected",
		"instance_id", rejected.InstanceID,
		"workflow_type", rejected.WorkflowType,
		"requester_id", rejected.RequesterID,
		"rejected_by", rejected.RejectedBy,
		"rejected_at_stage", rejected.RejectedAtStage,
	)

	return nil
}

func (n *NotifierManager) handleCancelled(ctx context.Context, event any) error {
	cancelled, ok := event.(*events.WorkflowCancelled)
	if !ok {
		n.logger.ErrorContext(ctx, "Invalid event type for WorkflowCancelled")

		return nil
	}

	n.logger.InfoContext(ctx, "Workflow cancelled",
		"instance_id", cancelled.InstanceID,
		"workflow_type", cancelled.WorkflowType,
		"requester_id", cancelled.RequesterID,
		"cancelled_by", cancelled.CancelledBy,
	)

	return nil
}
