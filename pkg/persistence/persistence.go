// Package persistence provides the data storage abstraction layer for
// workflow definitions, executions, schedules, triggers and the dedupe
// ledger.
package persistence

import (
	"context"
	"time"

	"github.com/campushive/flowkit/pkg/models"
)

// DefinitionStore is the immutable-ish catalog of workflow definitions.
type DefinitionStore interface {
	// WorkflowByID returns the workflow or ErrWorkflowNotFound.
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)

	// OrderedNodes returns the workflow's nodes sorted ascending by node
	// order, each mapping paired with its resolved template. Fails with
	// ErrNodeTemplateNotFound when any referenced template is missing or
	// inactive. The result is a finite, re-queryable snapshot.
	OrderedNodes(ctx context.Context, workflowID string) ([]models.WorkflowNode, error)

	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	SaveNodeTemplate(ctx context.Context, template *models.NodeTemplate) error
	SaveNodeMapping(ctx context.Context, mapping *models.WorkflowNodeMapping) error
}

// ExecutionStore records workflow executions and their per-node logs.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error
	UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error

	// ExecutionByID looks up by the externally addressable execution id.
	ExecutionByID(ctx context.Context, executionID string) (*models.WorkflowExecution, error)

	SaveLog(ctx context.Context, entry *models.WorkflowExecutionLog) error
	LogsByExecution(ctx context.Context, executionID string) ([]*models.WorkflowExecutionLog, error)
}

// ScheduleStore persists schedules and their planned runs.
type ScheduleStore interface {
	// DueSchedules returns ACTIVE schedules whose next run time is at or
	// before now.
	DueSchedules(ctx context.Context, now time.Time) ([]*models.WorkflowSchedule, error)

	ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error)
	SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error

	// CreateScheduleRun inserts a planned run. It returns false without
	// error when another tick already created a run with the same dedupe
	// key; the caller treats that as an idempotent no-op.
	CreateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) (bool, error)
	UpdateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) error
}

// TriggerStore persists event-to-workflow bindings.
type TriggerStore interface {
	// TriggerByEvent returns the active trigger bound to the event within
	// the institute, or ErrTriggerNotFound.
	TriggerByEvent(ctx context.Context, instituteID, eventName string) (*models.WorkflowTrigger, error)

	SaveTrigger(ctx context.Context, trigger *models.WorkflowTrigger) error
}

// DedupeStore is the idempotency ledger. Reserve must be a single atomic
// insert against the uniqueness constraint: true exactly once per logical
// key, false for every repeat. Implementations must never split this into a
// check followed by an insert.
type DedupeStore interface {
	Reserve(ctx context.Context, record *models.NodeDedupeRecord) (bool, error)
}

// Persistence bundles all stores behind one backend.
type Persistence interface {
	Definitions() DefinitionStore
	Executions() ExecutionStore
	Schedules() ScheduleStore
	Triggers() TriggerStore
	Dedupe() DedupeStore

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
