package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types shared by all implementations.
var (
	// ErrWorkflowNotFound indicates a workflow was not found or is not
	// executable.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNodeTemplateNotFound indicates a referenced node template is
	// missing or inactive.
	ErrNodeTemplateNotFound = errors.New("node template not found")

	// ErrExecutionNotFound indicates an execution was not found by its
	// external id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrScheduleNotFound indicates a schedule was not found.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrTriggerNotFound indicates no active trigger is bound to the event.
	ErrTriggerNotFound = errors.New("trigger not found")
)

// WorkflowError wraps definition-store errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsNotFound reports whether the error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrNodeTemplateNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrTriggerNotFound)
}
