package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type definitionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func (s *definitionStore) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , status
		  , kind
		  , institute_id
		  , created_by
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	var workflow models.Workflow

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Status,
		&workflow.Kind,
		&workflow.InstituteID,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return &workflow, nil
}

func (s *definitionStore) OrderedNodes(ctx context.Context, workflowID string) ([]models.WorkflowNode, error) {
	query := `
		SELECT
			m.id
		  , m.workflow_id
		  , m.node_template_id
		  , m.node_order
		  , m.is_start_node
		  , m.is_end_node
		  , m.continue_on_error
		  , m.override_config
		  , m.created_at
		  , t.id
		  , t.name
		  , t.type
		  , t.config_version
		  , t.config
		  , t.status
		  , t.created_at
		  , t.updated_at
		FROM workflow_node_mappings m
		JOIN node_templates t ON t.id = m.node_template_id
		WHERE m.workflow_id = $1
		ORDER BY m.node_order ASC
	`

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer closeRows(s.logger, rows)

	nodes := make([]models.WorkflowNode, 0)

	for rows.Next() {
		var (
			node           models.WorkflowNode
			overrideConfig []byte
			templateConfig []byte
		)

		err := rows.Scan(
			&node.Mapping.ID,
			&node.Mapping.WorkflowID,
			&node.Mapping.NodeTemplateID,
			&node.Mapping.NodeOrder,
			&node.Mapping.IsStartNode,
			&node.Mapping.IsEndNode,
			&node.Mapping.ContinueOnError,
			&overrideConfig,
			&node.Mapping.CreatedAt,
			&node.Template.ID,
			&node.Template.Name,
			&node.Template.Type,
			&node.Template.ConfigVersion,
			&templateConfig,
			&node.Template.Status,
			&node.Template.CreatedAt,
			&node.Template.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow node: %w", err)
		}

		if err := unmarshalJSONColumn(overrideConfig, &node.Mapping.OverrideConfig); err != nil {
			return nil, err
		}

		if err := unmarshalJSONColumn(templateConfig, &node.Template.Config); err != nil {
			return nil, err
		}

		if !node.Template.IsUsable() {
			return nil, fmt.Errorf("node %s of workflow %s is %s: %w",
				node.Template.ID, workflowID, node.Template.Status, persistence.ErrNodeTemplateNotFound)
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow nodes: %w", err)
	}

	return nodes, nil
}

func (s *definitionStore) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (id, name, status, kind, institute_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			kind = EXCLUDED.kind,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Status, workflow.Kind,
		workflow.InstituteID, workflow.CreatedBy, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (s *definitionStore) SaveNodeTemplate(ctx context.Context, template *models.NodeTemplate) error {
	if err := template.ValidateConfig(); err != nil {
		return err
	}

	config, err := json.Marshal(template.Config)
	if err != nil {
		return fmt.Errorf("failed to encode template config: %w", err)
	}

	query := `
		INSERT INTO node_templates (id, name, type, config_version, config, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			config_version = EXCLUDED.config_version,
			config = EXCLUDED.config,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}

	template.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Type, template.ConfigVersion,
		config, template.Status, template.CreatedAt, template.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save node template %s: %w", template.ID, err)
	}

	return nil
}

func (s *definitionStore) SaveNodeMapping(ctx context.Context, mapping *models.WorkflowNodeMapping) error {
	overrideConfig, err := json.Marshal(mapping.OverrideConfig)
	if err != nil {
		return fmt.Errorf("failed to encode override config: %w", err)
	}

	query := `
		INSERT INTO workflow_node_mappings
			(id, workflow_id, node_template_id, node_order, is_start_node, is_end_node, continue_on_error, override_config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			node_order = EXCLUDED.node_order,
			is_start_node = EXCLUDED.is_start_node,
			is_end_node = EXCLUDED.is_end_node,
			continue_on_error = EXCLUDED.continue_on_error,
			override_config = EXCLUDED.override_config
	`

	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, query,
		mapping.ID, mapping.WorkflowID, mapping.NodeTemplateID, mapping.NodeOrder,
		mapping.IsStartNode, mapping.IsEndNode, mapping.ContinueOnError,
		overrideConfig, mapping.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save node mapping %s: %w", mapping.ID, err)
	}

	return nil
}

// unmarshalJSONColumn decodes a nullable JSONB column into target.
func unmarshalJSONColumn(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}

	return nil
}
