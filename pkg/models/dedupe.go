package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeDedupeRecord is one row of the idempotency ledger. The uniqueness
// constraint over the logical key is the whole correctness mechanism: a
// successful insert means "first and only execution", a constraint violation
// means "already done, skip". Multiple engine instances share the same
// ledger, so an in-process set can never substitute for it.
type NodeDedupeRecord struct {
	ID             string        `json:"id"`
	WorkflowID     string        `json:"workflow_id"`
	NodeTemplateID *string       `json:"node_template_id,omitempty"`
	Scope          *string       `json:"scope,omitempty"`
	ScheduleRunID  *string       `json:"schedule_run_id,omitempty"`
	OperationKey   string        `json:"operation_key"`
	TTL            time.Duration `json:"ttl,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewDedupeRecord creates a ledger row for one logical operation.
func NewDedupeRecord(workflowID string, nodeTemplateID, scope, scheduleRunID *string, operationKey string, ttl time.Duration) *NodeDedupeRecord {
	return &NodeDedupeRecord{
		ID:             uuid.New().String(),
		WorkflowID:     workflowID,
		NodeTemplateID: nodeTemplateID,
		Scope:          scope,
		ScheduleRunID:  scheduleRunID,
		OperationKey:   operationKey,
		TTL:            ttl,
		CreatedAt:      time.Now().UTC(),
	}
}

// LogicalKey joins the identifying components into the string the uniqueness
// constraint is enforced over.
func (r *NodeDedupeRecord) LogicalKey() string {
	parts := []string{r.WorkflowID, deref(r.NodeTemplateID), deref(r.Scope), r.OperationKey}

	return strings.Join(parts, "/")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
