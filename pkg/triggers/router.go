// Package triggers routes application events to workflow executions, with
// idempotent delivery enforced through the dedupe ledger.
package triggers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushive/flowkit/pkg/dedupe"
	"github.com/campushive/flowkit/pkg/eventbus"
	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/runtime"
)

const triggerScope = "trigger"

// DispatchFunc hands a routed event off for execution.
type DispatchFunc func(ctx context.Context, req runtime.RunRequest) (*models.WorkflowExecution, error)

// Router resolves incoming application events to trigger bindings and fires
// the bound workflow at most once per idempotency key.
type Router struct {
	logger    *slog.Logger
	store     persistence.TriggerStore
	guard     *dedupe.Guard
	dispatch  DispatchFunc
	publisher eventbus.EventPublisher
}

// NewRouter wires a router over the trigger store and dedupe guard.
func NewRouter(logger *slog.Logger, store persistence.TriggerStore, guard *dedupe.Guard, dispatch DispatchFunc, publisher eventbus.EventPublisher) *Router {
	return &Router{
		logger:    logger.With("module", "triggers"),
		store:     store,
		guard:     guard,
		dispatch:  dispatch,
		publisher: publisher,
	}
}

// Result reports what HandleEvent decided.
type Result struct {
	// Fired is true when a workflow execution was started for this event.
	Fired bool

	// Duplicate is true when the event's idempotency key was already
	// claimed and the event was suppressed.
	Duplicate bool

	// ExecutionID identifies the started execution when Fired.
	ExecutionID string
}

// HandleEvent routes one application event. An event with no active trigger
// binding is a silent no-op, as is a duplicate of an already handled
// occurrence. The returned error covers infrastructure failures only.
func (r *Router) HandleEvent(ctx context.Context, instituteID, eventName string, payload map[string]any) (Result, error) {
	logger := r.logger.With("institute_id", instituteID, "event_name", eventName)

	trigger, err := r.store.TriggerByEvent(ctx, instituteID, eventName)
	if err != nil {
		if errors.Is(err, persistence.ErrTriggerNotFound) {
			logger.DebugContext(ctx, "No trigger bound to event")

			return Result{}, nil
		}

		return Result{}, fmt.Errorf("failed to look up trigger: %w", err)
	}

	if trigger.Status != models.TriggerStatusActive {
		logger.DebugContext(ctx, "Trigger inactive, ignoring event", "trigger_id", trigger.ID)

		return Result{}, nil
	}

	if !trigger.Idempotency.Strategy.Known() {
		logger.WarnContext(ctx, "Unknown idempotency strategy, falling back to context-based keys",
			"trigger_id", trigger.ID,
			"strategy", string(trigger.Idempotency.Strategy))
	}

	key := trigger.IdempotencyKey(payload)
	scope := triggerScope

	reserved, err := r.guard.Reserve(ctx, trigger.WorkflowID, nil, &scope, nil, key, trigger.Idempotency.TTL())
	if err != nil {
		return Result{}, fmt.Errorf("failed to reserve trigger idempotency key: %w", err)
	}

	if !reserved {
		logger.InfoContext(ctx, "Duplicate event suppressed", "trigger_id", trigger.ID, "idempotency_key", key)

		return Result{Duplicate: true}, nil
	}

	execution, err := r.dispatch(ctx, runtime.RunRequest{
		WorkflowID: trigger.WorkflowID,
		Input:      triggerInput(trigger, eventName, payload),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to dispatch workflow %s: %w", trigger.WorkflowID, err)
	}

	logger.InfoContext(ctx, "Trigger fired",
		"trigger_id", trigger.ID,
		"workflow_id", trigger.WorkflowID,
		"execution_id", execution.ExecutionID)

	r.publishFired(ctx, trigger, key, execution)

	return Result{Fired: true, ExecutionID: execution.ExecutionID}, nil
}

func (r *Router) publishFired(ctx context.Context, trigger *models.WorkflowTrigger, key string, execution *models.WorkflowExecution) {
	if r.publisher == nil {
		return
	}

	event := events.TriggerFired{
		BaseEvent: events.BaseEvent{
			Type:        events.TriggerFiredEvent,
			Timestamp:   time.Now().UTC(),
			WorkflowID:  trigger.WorkflowID,
			InstituteID: trigger.InstituteID,
		},
		TriggerID:      trigger.ID,
		EventName:      trigger.EventName,
		IdempotencyKey: key,
		ExecutionID:    execution.ExecutionID,
	}

	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish trigger event", "error", err)
	}
}

// triggerInput seeds the execution context for event-triggered runs. The raw
// payload is nested under "event" so workflow expressions address it as
// ${event.<field>}.
func triggerInput(trigger *models.WorkflowTrigger, eventName string, payload map[string]any) map[string]any {
	return map[string]any{
		"event":       payload,
		"eventName":   eventName,
		"instituteId": trigger.InstituteID,
		"triggerId":   trigger.ID,
	}
}
