package web

import (
	"time"

	"github.com/campushive/flowkit/pkg/models"
)

// StartExecutionRequest is the body of POST /workflows/:id/executions.
type StartExecutionRequest struct {
	Input map[string]any `json:"input"`
}

// IngestEventRequest is the body of POST /events.
type IngestEventRequest struct {
	InstituteID string         `json:"institute_id" validate:"required"`
	EventName   string         `json:"event_name"   validate:"required"`
	Payload     map[string]any `json:"payload"`
}

// ExecutionResponse is the externally visible view of an execution.
type ExecutionResponse struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      models.ExecutionStatus `json:"status"`
	InputData   map[string]any         `json:"input_data,omitempty"`
	OutputData  map[string]any         `json:"output_data,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// IngestEventResponse reports what the trigger router decided for an event.
type IngestEventResponse struct {
	Fired       bool   `json:"fired"`
	Duplicate   bool   `json:"duplicate"`
	ExecutionID string `json:"execution_id,omitempty"`
}

func toExecutionResponse(execution *models.WorkflowExecution) ExecutionResponse {
	return ExecutionResponse{
		ExecutionID: execution.ExecutionID,
		WorkflowID:  execution.WorkflowID,
		Status:      execution.Status,
		InputData:   execution.InputData,
		OutputData:  execution.OutputData,
		StartedAt:   execution.StartedAt,
		CompletedAt: execution.CompletedAt,
	}
}
