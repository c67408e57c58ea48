package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the state machine of a workflow execution.
// WAITING is reserved for nodes that pause the run awaiting an external
// confirmation; terminal states are COMPLETED, FAILED and CANCELLED.
type ExecutionStatus string

const (
	ExecutionStatusCreated   ExecutionStatus = "CREATED"
	ExecutionStatusRunning   ExecutionStatus = "RUNNING"
	ExecutionStatusCompleted ExecutionStatus = "COMPLETED"
	ExecutionStatusFailed    ExecutionStatus = "FAILED"
	ExecutionStatusWaiting   ExecutionStatus = "WAITING"
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// WorkflowExecution is one instance of running a workflow. ExecutionID is the
// externally addressable identifier; terminal once CompletedAt is set.
type WorkflowExecution struct {
	ID              string          `json:"id"`
	ExecutionID     string          `json:"execution_id"  validate:"required"`
	WorkflowID      string          `json:"workflow_id"   validate:"required"`
	ScheduleID      *string         `json:"schedule_id,omitempty"`
	ScheduleRunID   *string         `json:"schedule_run_id,omitempty"`
	Status          ExecutionStatus `json:"status"`
	CurrentNodeID   *string         `json:"current_node_id,omitempty"`
	InputData       map[string]any  `json:"input_data,omitempty"`
	OutputData      map[string]any  `json:"output_data,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// NewWorkflowExecution creates a running execution for the given workflow.
func NewWorkflowExecution(workflowID string, input map[string]any) *WorkflowExecution {
	id := uuid.New().String()

	return &WorkflowExecution{
		ID:          id,
		ExecutionID: "exec-" + id[:8],
		WorkflowID:  workflowID,
		Status:      ExecutionStatusRunning,
		InputData:   input,
		StartedAt:   time.Now().UTC(),
	}
}

// Complete transitions the execution into a terminal state.
func (e *WorkflowExecution) Complete(status ExecutionStatus) {
	now := time.Now().UTC()
	e.Status = status
	e.CompletedAt = &now
}

// IsTerminal reports whether the execution reached a terminal state.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.CompletedAt != nil
}

// LogStatus represents the outcome of one node attempt.
type LogStatus string

const (
	LogStatusRunning LogStatus = "RUNNING"
	LogStatusSuccess LogStatus = "SUCCESS"
	LogStatusFailure LogStatus = "FAILURE"
)

// WorkflowExecutionLog is one row per node attempt within an execution.
// Append-only: never updated after MarkCompleted.
type WorkflowExecutionLog struct {
	ID              string         `json:"id"`
	ExecutionID     string         `json:"execution_id"`
	NodeMappingID   string         `json:"node_mapping_id"`
	NodeTemplateID  string         `json:"node_template_id"`
	NodeType        string         `json:"node_type"`
	NodeName        string         `json:"node_name"`
	Status          LogStatus      `json:"status"`
	Details         map[string]any `json:"details,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ErrorType       string         `json:"error_type,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ExecutionTimeMs *int64         `json:"execution_time_ms,omitempty"`
}

// NewExecutionLog opens a running log entry for a node attempt.
func NewExecutionLog(executionID string, node *WorkflowNode) *WorkflowExecutionLog {
	return &WorkflowExecutionLog{
		ID:             uuid.New().String(),
		ExecutionID:    executionID,
		NodeMappingID:  node.Mapping.ID,
		NodeTemplateID: node.Template.ID,
		NodeType:       node.Template.Type,
		NodeName:       node.Template.Name,
		Status:         LogStatusRunning,
		StartedAt:      time.Now().UTC(),
	}
}

// MarkCompleted stamps the terminal status, completion time and computed
// duration on the log entry.
func (l *WorkflowExecutionLog) MarkCompleted(status LogStatus, details map[string]any, errorMessage, errorType string) {
	now := time.Now().UTC()
	elapsed := now.Sub(l.StartedAt).Milliseconds()

	l.Status = status
	l.Details = details
	l.ErrorMessage = errorMessage
	l.ErrorType = errorType
	l.CompletedAt = &now
	l.ExecutionTimeMs = &elapsed
}
