// Package events defines the lifecycle notifications the engine publishes as
// executions, schedules and triggers progress.
package events

import (
	"time"

	"github.com/campushive/flowkit/pkg/models"
)

type EventType string

// Topic is the single stream all engine events are published to.
const Topic = "flowkit.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	NodeCompletedEvent EventType = "execution.node.completed"

	// ExecutionRequested is the hand-off from dispatchers to workers.
	ExecutionRequestedEvent EventType = "execution.requested"

	ScheduleRunDispatchedEvent EventType = "schedule.run.dispatched"
	TriggerFiredEvent          EventType = "trigger.fired"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	InstituteID string         `json:"institute_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	Input       map[string]any `json:"input,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeName    string        `json:"node_name,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// NodeCompleted is emitted after every node attempt, successful or not.
type NodeCompleted struct {
	BaseEvent

	ExecutionID  string           `json:"execution_id"`
	NodeName     string           `json:"node_name"`
	NodeOrder    int              `json:"node_order"`
	Status       models.LogStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	DurationMs   int64            `json:"duration_ms"`
	CompletedAt  time.Time        `json:"completed_at"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

// ExecutionRequested asks any worker to run a workflow with the given seed
// input. Schedule fields are set for scheduler-originated requests.
type ExecutionRequested struct {
	BaseEvent

	Input         map[string]any `json:"input,omitempty"`
	ScheduleID    *string        `json:"schedule_id,omitempty"`
	ScheduleRunID *string        `json:"schedule_run_id,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type ScheduleRunDispatched struct {
	BaseEvent

	ScheduleID   string    `json:"schedule_id"`
	RunID        string    `json:"run_id"`
	PlannedRunAt time.Time `json:"planned_run_at"`
}

func (e ScheduleRunDispatched) GetType() EventType {
	return ScheduleRunDispatchedEvent
}

type TriggerFired struct {
	BaseEvent

	TriggerID      string `json:"trigger_id"`
	EventName      string `json:"event_name"`
	IdempotencyKey string `json:"idempotency_key"`
	ExecutionID    string `json:"execution_id,omitempty"`
}

func (e TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}
