package engine

import (
	"context"
	"time"

	"github.com/approvio/approvio/pkg/eventbus"
	"github.com/approvio/approvio/pkg/events"
	"github.com/approvio/approvio/pkg/models"
)

// Event publishing is best-effort: the state transition has already been
// persisted, so a publish failure is logged and surfaced to consumers through
// reconciliation, not by failing the caller's request.

func (e *Engine) publish(ctx context.Context, instance *models.WorkflowInstance, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, instance.ID, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish workflow event",
			"instance_id", instance.ID,
			"event_type", event.GetType(),
			"error", err)
	}
}

func (e *Engine) baseEvent(instance *models.WorkflowInstance, eventType events.EventType) events.BaseEvent {
	id := ""
	if e.eventBus != nil {
		id = e.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:           id,
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		InstanceID:   instance.ID,
		WorkflowType: instance.WorkflowType,
		RequesterID:  instance.RequesterID,
	}
}

func (e *Engine) publishCreated(ctx context.Context, instance *models.WorkflowInstance) {
	e.publish(ctx, instance, events.WorkflowCreated{
		BaseEvent:         e.baseEvent(instance, events.WorkflowCreatedEvent),
		DefinitionID:      instance.DefinitionID,
		DefinitionVersion: instance.DefinitionVersion,
		TotalStages:       instance.TotalStages,
	})
}

func (e *Engine) publishAdvancement(ctx context.Context, instance *models.WorkflowInstance) {
	entry := instance.CurrentChainEntry()
	if entry == nil {
		return
	}

	e.publish(ctx, instance, events.WorkflowStageAdvanced{
		BaseEvent:    e.baseEvent(instance, events.WorkflowStageAdvancedEvent),
		StageNumber:  entry.StageNumber,
		StageName:    entry.StageName,
		ApproverID:   entry.ApproverID,
		AutoApproved: entry.Status == models.ChainEntryApproved,
	})
}

func (e *Engine) publishApproved(ctx context.Context, instance *models.WorkflowInstance) {
	event := events.WorkflowApproved{
		BaseEvent:   e.baseEvent(instance, events.WorkflowApprovedEvent),
		RequestData: instance.Payload,
	}

	if amount, ok := models.PayloadAmount(instance.Payload); ok {
		event.ApprovedAmount = &amount
	}

	if rate, ok := instance.Payload["interest_rate"].(float64); ok {
		event.ApprovedInterestRate = &rate
	}

	if period, ok := payloadInt(instance.Payload, "repayment_period"); ok {
		event.ApprovedRepaymentPeriod = &period
	}

	e.publish(ctx, instance, event)
}

func (e *Engine) publishRejected(ctx context.Context, instance *models.WorkflowInstance, rejectedBy, reason string) {
	e.publish(ctx, instance, events.WorkflowRejected{
		BaseEvent:       e.baseEvent(instance, events.WorkflowRejectedEvent),
		RequestData:     instance.Payload,
		RejectedBy:      rejectedBy,
		RejectedAtStage: instance.CurrentStage,
		RejectionReason: reason,
	})
}

func (e *Engine) publishCancelled(ctx context.Context, instance *models.WorkflowInstance) {
	e.publish(ctx, instance, events.WorkflowCancelled{
		BaseEvent:          e.baseEvent(instance, events.WorkflowCancelledEvent),
		RequestData:        instance.Payload,
		CancelledBy:        instance.CancelledBy,
		CancellationReason: instance.CancelReason,
	})
}

func (e *Engine) publishDelegated(ctx context.Context, instance *models.WorkflowInstance, delegatedBy, delegatedTo string) {
	e.publish(ctx, instance, events.WorkflowDelegated{
		BaseEvent:   e.baseEvent(instance, events.WorkflowDelegatedEvent),
		StageNumber: instance.CurrentStage,
		DelegatedBy: delegatedBy,
		DelegatedTo: delegatedTo,
	})
}

func payloadInt(payload map[string]any, key string) (int, bool) {
	raw, ok := payload[key]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
