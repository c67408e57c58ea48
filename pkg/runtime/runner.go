// Package runtime drives workflow executions node by node, recording an
// append-only log per attempt and applying each node's error policy.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/campushive/flowkit/pkg/eventbus"
	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/otelhelper"
	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/strategies"
)

// RunRequest identifies what to execute and with which seed input. Schedule
// fields are set only for scheduler-dispatched runs.
type RunRequest struct {
	WorkflowID    string
	Input         map[string]any
	ScheduleID    *string
	ScheduleRunID *string
}

// Runner executes workflows sequentially by node order. One Runner is shared
// across goroutines; all per-run state lives in the execution record and the
// context map built per run.
type Runner struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *strategies.Registry
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
}

// NewRunner wires a runner over the given stores, strategy registry and event
// publisher. The tracer may be nil when tracing is disabled.
func NewRunner(
	logger *slog.Logger,
	store persistence.Persistence,
	registry *strategies.Registry,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
) *Runner {
	return &Runner{
		logger:      logger.With("module", "runtime"),
		persistence: store,
		registry:    registry,
		publisher:   publisher,
		tracer:      tracer,
	}
}

// Run executes the workflow end to end and returns the finished execution
// record. A node failure on a node without continueOnError stops the run
// with status FAILED; Run itself returns an error only for infrastructure
// failures (store unreachable, definition invalid), never for action-level
// failures, which are recorded in the execution and its logs.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*models.WorkflowExecution, error) {
	logger := r.logger.With("workflow_id", req.WorkflowID)

	workflow, err := r.persistence.Definitions().WorkflowByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", req.WorkflowID, err)
	}

	if !workflow.IsExecutable() {
		return nil, fmt.Errorf("workflow %s is not executable: status %s", workflow.ID, workflow.Status)
	}

	nodes, err := r.persistence.Definitions().OrderedNodes(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve nodes for workflow %s: %w", req.WorkflowID, err)
	}

	execution := models.NewWorkflowExecution(req.WorkflowID, req.Input)
	execution.ScheduleID = req.ScheduleID
	execution.ScheduleRunID = req.ScheduleRunID

	if err := r.persistence.Executions().CreateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger = logger.With("execution_id", execution.ExecutionID)
	logger.InfoContext(ctx, "Starting workflow execution", "nodes", len(nodes))

	ctx, span := r.startSpan(ctx, workflow, execution)
	defer span.End()

	r.publish(ctx, execution.ExecutionID, events.ExecutionStarted{
		BaseEvent:   r.baseEvent(events.ExecutionStartedEvent, workflow),
		ExecutionID: execution.ExecutionID,
		Input:       req.Input,
	})

	execContext := buildContext(req.Input)

	status := models.ExecutionStatusCompleted
	failedNode := ""
	failureMessage := ""

	for _, node := range nodes {
		node := node

		cancelled, err := r.cancelRequested(ctx, execution)
		if err != nil {
			return nil, err
		}

		if cancelled {
			logger.InfoContext(ctx, "Cancellation requested, stopping execution", "before_node", node.Name())

			status = models.ExecutionStatusCancelled

			break
		}

		execution.CurrentNodeID = &node.Mapping.ID
		if err := r.persistence.Executions().UpdateExecution(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to update execution position: %w", err)
		}

		result, nodeErr := r.runNode(ctx, execution, workflow, &node, execContext)
		if nodeErr != nil {
			return nil, nodeErr
		}

		execContext[node.Name()] = result

		if strategies.IsError(result) {
			message := fmt.Sprint(result[strategies.KeyError])

			if node.Mapping.ContinueOnError {
				logger.WarnContext(ctx, "Node failed, continuing by policy",
					"node", node.Name(), "error", message)

				continue
			}

			logger.ErrorContext(ctx, "Node failed, aborting execution",
				"node", node.Name(), "error", message)

			status = models.ExecutionStatusFailed
			failedNode = node.Name()
			failureMessage = message

			break
		}
	}

	execution.CurrentNodeID = nil
	execution.OutputData = execContext
	execution.Complete(status)

	if err := r.persistence.Executions().UpdateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to finalize execution: %w", err)
	}

	r.publishTerminal(ctx, workflow, execution, failedNode, failureMessage)

	logger.InfoContext(ctx, "Workflow execution finished",
		"status", execution.Status,
		"duration", time.Since(execution.StartedAt))

	return execution, nil
}

// runNode executes one node through its strategy, recording the open and
// completed log rows around the attempt. The returned map is the node's
// normalized result; the error return is reserved for store failures.
func (r *Runner) runNode(
	ctx context.Context,
	execution *models.WorkflowExecution,
	workflow *models.Workflow,
	node *models.WorkflowNode,
	execContext map[string]any,
) (map[string]any, error) {
	entry := models.NewExecutionLog(execution.ExecutionID, node)

	if err := r.persistence.Executions().SaveLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to open execution log for node %s: %w", node.Name(), err)
	}

	config := node.EffectiveConfig()

	ctx, span := otelhelper.StartSpan(ctx, r.nodeTracer(), "node.execute",
		attribute.String(otelhelper.ExecutionIDKey, execution.ExecutionID),
		attribute.String(otelhelper.NodeNameKey, node.Name()),
		attribute.String(otelhelper.NodeTypeKey, node.Template.Type),
	)
	defer span.End()

	strategy, ok := r.registry.Resolve(strategies.RequestTypeOf(config))
	if !ok {
		result := map[string]any{
			strategies.KeyError: "no strategy registered for node " + node.Name(),
		}
		entry.MarkCompleted(models.LogStatusFailure, result, fmt.Sprint(result[strategies.KeyError]), "CONFIGURATION")

		if err := r.persistence.Executions().SaveLog(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to close execution log for node %s: %w", node.Name(), err)
		}

		return result, nil
	}

	result := strategy.Execute(ctx, execContext, config)

	logStatus := models.LogStatusSuccess
	errorMessage := ""
	errorType := ""

	if strategies.IsError(result) {
		logStatus = models.LogStatusFailure
		errorMessage = fmt.Sprint(result[strategies.KeyError])
		errorType = strategy.Type()

		otelhelper.SetError(span, fmt.Errorf("%s", errorMessage),
			attribute.String(otelhelper.NodeNameKey, node.Name()))
	}

	entry.MarkCompleted(logStatus, result, errorMessage, errorType)

	if err := r.persistence.Executions().SaveLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to close execution log for node %s: %w", node.Name(), err)
	}

	r.publish(ctx, execution.ExecutionID, events.NodeCompleted{
		BaseEvent:    r.baseEvent(events.NodeCompletedEvent, workflow),
		ExecutionID:  execution.ExecutionID,
		NodeName:     node.Name(),
		NodeOrder:    node.Mapping.NodeOrder,
		Status:       logStatus,
		ErrorMessage: errorMessage,
		DurationMs:   derefInt64(entry.ExecutionTimeMs),
		CompletedAt:  derefTime(entry.CompletedAt),
	})

	return result, nil
}

// cancelRequested re-reads the execution between nodes so a cancellation
// raised through the API takes effect at the next node boundary. A running
// node is never interrupted.
func (r *Runner) cancelRequested(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	current, err := r.persistence.Executions().ExecutionByID(ctx, execution.ExecutionID)
	if err != nil {
		return false, fmt.Errorf("failed to refresh execution %s: %w", execution.ExecutionID, err)
	}

	execution.CancelRequested = current.CancelRequested

	return current.CancelRequested, nil
}

func (r *Runner) startSpan(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution) (context.Context, trace.Span) {
	if r.tracer == nil {
		return noop.NewTracerProvider().Tracer("flowkit").Start(ctx, "workflow.execute")
	}

	return otelhelper.StartSpan(ctx, r.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ExecutionID),
		attribute.String(otelhelper.InstituteIDKey, workflow.InstituteID),
	)
}

func (r *Runner) nodeTracer() trace.Tracer {
	if r.tracer == nil {
		return noop.NewTracerProvider().Tracer("flowkit")
	}

	return r.tracer
}

func (r *Runner) publishTerminal(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, failedNode, failureMessage string) {
	duration := time.Since(execution.StartedAt)

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		r.publish(ctx, execution.ExecutionID, events.ExecutionCompleted{
			BaseEvent:   r.baseEvent(events.ExecutionCompletedEvent, workflow),
			ExecutionID: execution.ExecutionID,
			Duration:    duration,
		})
	case models.ExecutionStatusFailed:
		r.publish(ctx, execution.ExecutionID, events.ExecutionFailed{
			BaseEvent:   r.baseEvent(events.ExecutionFailedEvent, workflow),
			ExecutionID: execution.ExecutionID,
			NodeName:    failedNode,
			Error:       failureMessage,
			Duration:    duration,
		})
	case models.ExecutionStatusCancelled:
		r.publish(ctx, execution.ExecutionID, events.ExecutionCancelled{
			BaseEvent:   r.baseEvent(events.ExecutionCancelledEvent, workflow),
			ExecutionID: execution.ExecutionID,
		})
	}
}

// publish sends an event best-effort. A broker outage must not fail a run
// whose state is already durable in the store.
func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (r *Runner) baseEvent(eventType events.EventType, workflow *models.Workflow) events.BaseEvent {
	return events.BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflow.ID,
		InstituteID: workflow.InstituteID,
	}
}

// buildContext seeds the evaluation context with a copy of the run input.
// Node results are added under each node's name as the run progresses.
func buildContext(input map[string]any) map[string]any {
	execContext := make(map[string]any, len(input)+4)
	for k, v := range input {
		execContext[k] = v
	}

	return execContext
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}

	return *v
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}

	return *t
}
