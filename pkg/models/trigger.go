package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TriggerStatus represents the lifecycle state of an event trigger binding.
type TriggerStatus string

const (
	TriggerStatusActive   TriggerStatus = "ACTIVE"
	TriggerStatusInactive TriggerStatus = "INACTIVE"
)

// IdempotencyStrategy selects how a trigger's idempotency key is derived.
type IdempotencyStrategy string

const (
	// IdempotencyContextBased folds named context fields into the key, so
	// the same logical event never fires the workflow twice within the TTL.
	IdempotencyContextBased IdempotencyStrategy = "CONTEXT_BASED"
	// IdempotencyPayloadHash folds the entire payload into the key. Useful
	// when no stable identifier exists in the event.
	IdempotencyPayloadHash IdempotencyStrategy = "PAYLOAD_HASH"
)

// Known reports whether the strategy tag is one this engine implements. An
// empty tag counts as known and means context-based.
func (s IdempotencyStrategy) Known() bool {
	switch s {
	case IdempotencyContextBased, IdempotencyPayloadHash, "":
		return true
	}

	return false
}

// IdempotencySettings configures dedupe key generation for a trigger.
type IdempotencySettings struct {
	Strategy      IdempotencyStrategy `json:"strategy"`
	ContextFields []string            `json:"context_fields"`
	TTLSeconds    int                 `json:"ttl_seconds"`
}

// TTL returns the key's time-to-live, zero meaning no expiry.
func (s IdempotencySettings) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// WorkflowTrigger binds a named application event within an institute to a
// workflow.
type WorkflowTrigger struct {
	ID          string              `json:"id"           validate:"required"`
	InstituteID string              `json:"institute_id" validate:"required"`
	EventName   string              `json:"event_name"   validate:"required"`
	WorkflowID  string              `json:"workflow_id"  validate:"required"`
	Status      TriggerStatus       `json:"status"`
	Idempotency IdempotencySettings `json:"idempotency"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// IdempotencyKey derives the deterministic key for one logical occurrence of
// the trigger's event, dispatching on the configured strategy. Unknown
// strategy tags fall back to context-based derivation so key generation stays
// total; callers can detect the fallback with Known.
func (t *WorkflowTrigger) IdempotencyKey(payload map[string]any) string {
	switch t.Idempotency.Strategy {
	case IdempotencyPayloadHash:
		return t.payloadHashKey(payload)
	default:
		return t.contextBasedKey(payload)
	}
}

// contextBasedKey hashes the trigger identity plus the configured context
// fields. Fields are dotted paths into the event payload; a missing field
// contributes an empty value rather than failing.
func (t *WorkflowTrigger) contextBasedKey(payload map[string]any) string {
	fields := make([]string, len(t.Idempotency.ContextFields))
	copy(fields, t.Idempotency.ContextFields)
	sort.Strings(fields)

	parts := make([]string, 0, len(fields)+2)
	parts = append(parts, t.InstituteID, t.EventName)

	for _, field := range fields {
		parts = append(parts, field+"="+fmt.Sprint(lookupPath(payload, field)))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))

	return hex.EncodeToString(sum[:])
}

// payloadHashKey hashes the trigger identity plus the canonical JSON encoding
// of the whole payload. json.Marshal writes map keys in sorted order, so the
// encoding is stable for equal payloads.
func (t *WorkflowTrigger) payloadHashKey(payload map[string]any) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(fmt.Sprint(payload))
	}

	sum := sha256.Sum256([]byte(t.InstituteID + "|" + t.EventName + "|" + string(encoded)))

	return hex.EncodeToString(sum[:])
}

// lookupPath walks a dotted path through nested maps, returning nil when any
// segment is absent.
func lookupPath(data map[string]any, path string) any {
	var current any = data

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = node[segment]
		if !ok {
			return nil
		}
	}

	return current
}
