package models

import (
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// NodeTemplateStatus represents the lifecycle state of a node template.
type NodeTemplateStatus string

const (
	NodeTemplateStatusActive   NodeTemplateStatus = "ACTIVE"
	NodeTemplateStatusInactive NodeTemplateStatus = "INACTIVE"
	NodeTemplateStatusDraft    NodeTemplateStatus = "DRAFT"
)

// NodeTemplate is a reusable node definition holding a versioned JSON
// configuration blob. Templates are immutable once referenced by a mapping;
// changes are drafted as new config versions.
type NodeTemplate struct {
	ID            string             `json:"id"             validate:"required"`
	Name          string             `json:"name"           validate:"required"`
	Type          string             `json:"type"           validate:"required"`
	ConfigVersion int                `json:"config_version"`
	Config        map[string]any     `json:"config"`
	Status        NodeTemplateStatus `json:"status"         validate:"required"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// IsUsable reports whether the template may be referenced by a mapping.
func (t *NodeTemplate) IsUsable() bool {
	return t.Status == NodeTemplateStatusActive
}

// nodeConfigSchema constrains the HTTP-shaped node configuration. Fields not
// listed here are permitted so strategies can carry their own extensions.
var nodeConfigSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url":    map[string]any{"type": "string"},
		"method": map[string]any{"type": "string", "enum": []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
		"headers": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"queryParams": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"body":           map[string]any{"type": []any{"object", "array", "string", "null"}},
		"authentication": map[string]any{"type": "object"},
		"requestType":    map[string]any{"type": "string"},
		"timeoutSeconds": map[string]any{"type": "number", "minimum": 1, "maximum": 300},
	},
}

// ValidateConfig checks the template configuration against the node config
// schema. A template with an invalid config must not be referenced.
func (t *NodeTemplate) ValidateConfig() error {
	schemaLoader := gojsonschema.NewGoLoader(nodeConfigSchema)
	configLoader := gojsonschema.NewGoLoader(t.Config)

	result, err := gojsonschema.Validate(schemaLoader, configLoader)
	if err != nil {
		return fmt.Errorf("failed to validate node config for template %s: %w", t.ID, err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid node config for template %s: %s", t.ID, result.Errors()[0].String())
	}

	return nil
}

// WorkflowNodeMapping links a workflow to a node template with an ordering
// position. Exactly one mapping per workflow carries IsStartNode, and
// NodeOrder is a total order within the workflow.
type WorkflowNodeMapping struct {
	ID              string         `json:"id"              validate:"required"`
	WorkflowID      string         `json:"workflow_id"     validate:"required"`
	NodeTemplateID  string         `json:"node_template_id" validate:"required"`
	NodeOrder       int            `json:"node_order"`
	IsStartNode     bool           `json:"is_start_node"`
	IsEndNode       bool           `json:"is_end_node"`
	ContinueOnError bool           `json:"continue_on_error"`
	OverrideConfig  map[string]any `json:"override_config,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// WorkflowNode pairs a mapping with its resolved template, as returned by the
// definition store in node order.
type WorkflowNode struct {
	Mapping  WorkflowNodeMapping `json:"mapping"`
	Template NodeTemplate        `json:"template"`
}

// Name returns the context key under which this node's output is stored.
func (n *WorkflowNode) Name() string {
	return n.Template.Name
}

// EffectiveConfig returns the template config with the mapping override
// shallow-merged on top.
func (n *WorkflowNode) EffectiveConfig() map[string]any {
	return MergeConfigs(n.Template.Config, n.Mapping.OverrideConfig)
}

// MergeConfigs performs a shallow JSON merge: override keys replace base keys
// wholesale, so nested objects and arrays are replaced rather than combined.
func MergeConfigs(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range override {
		merged[k] = v
	}

	return merged
}
