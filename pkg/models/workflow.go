// Package models defines the core domain models for workflow orchestration.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "ACTIVE"
	WorkflowStatusInactive WorkflowStatus = "INACTIVE"
	WorkflowStatusDraft    WorkflowStatus = "DRAFT"
)

// WorkflowKind distinguishes how a workflow is expected to be fired.
type WorkflowKind string

const (
	WorkflowKindScheduled WorkflowKind = "SCHEDULED"
	WorkflowKindManual    WorkflowKind = "MANUAL"
)

// Workflow is a reusable multi-step automation definition. Workflows are
// never physically deleted; deactivation is a status transition only.
type Workflow struct {
	ID          string         `json:"id"           validate:"required"`
	Name        string         `json:"name"         validate:"required,min=3"`
	Status      WorkflowStatus `json:"status"       validate:"required"`
	Kind        WorkflowKind   `json:"kind"         validate:"required"`
	InstituteID string         `json:"institute_id" validate:"required"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsExecutable reports whether the workflow may be dispatched.
func (w *Workflow) IsExecutable() bool {
	return w.Status == WorkflowStatusActive
}
