package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type executionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func (s *executionStore) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	inputData, outputData, err := encodeExecutionData(execution)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_executions
			(id, execution_id, workflow_id, schedule_id, schedule_run_id, status,
			 current_node_id, input_data, output_data, cancel_requested, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.db.ExecContext(ctx, query,
		execution.ID, execution.ExecutionID, execution.WorkflowID,
		execution.ScheduleID, execution.ScheduleRunID, execution.Status,
		execution.CurrentNodeID, inputData, outputData,
		execution.CancelRequested, execution.StartedAt, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution %s: %w", execution.ExecutionID, err)
	}

	return nil
}

func (s *executionStore) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	_, outputData, err := encodeExecutionData(execution)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_executions
		SET status = $2
		  , current_node_id = $3
		  , output_data = $4
		  , cancel_requested = $5
		  , completed_at = $6
		WHERE execution_id = $1
	`

	_, err = s.db.ExecContext(ctx, query,
		execution.ExecutionID, execution.Status, execution.CurrentNodeID,
		outputData, execution.CancelRequested, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update execution %s: %w", execution.ExecutionID, err)
	}

	return nil
}

func (s *executionStore) ExecutionByID(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , workflow_id
		  , schedule_id
		  , schedule_run_id
		  , status
		  , current_node_id
		  , input_data
		  , output_data
		  , cancel_requested
		  , started_at
		  , completed_at
		FROM workflow_executions
		WHERE execution_id = $1
	`

	var (
		execution  models.WorkflowExecution
		inputData  []byte
		outputData []byte
	)

	err := s.db.QueryRowContext(ctx, query, executionID).Scan(
		&execution.ID,
		&execution.ExecutionID,
		&execution.WorkflowID,
		&execution.ScheduleID,
		&execution.ScheduleRunID,
		&execution.Status,
		&execution.CurrentNodeID,
		&inputData,
		&outputData,
		&execution.CancelRequested,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	if err := unmarshalJSONColumn(inputData, &execution.InputData); err != nil {
		return nil, err
	}

	if err := unmarshalJSONColumn(outputData, &execution.OutputData); err != nil {
		return nil, err
	}

	return &execution, nil
}

func (s *executionStore) SaveLog(ctx context.Context, entry *models.WorkflowExecutionLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode log details: %w", err)
	}

	query := `
		INSERT INTO workflow_execution_logs
			(id, execution_id, node_mapping_id, node_template_id, node_type, node_name,
			 status, details, error_message, error_type, started_at, completed_at, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			details = EXCLUDED.details,
			error_message = EXCLUDED.error_message,
			error_type = EXCLUDED.error_type,
			completed_at = EXCLUDED.completed_at,
			execution_time_ms = EXCLUDED.execution_time_ms
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.ExecutionID, entry.NodeMappingID, entry.NodeTemplateID,
		entry.NodeType, entry.NodeName, entry.Status, details,
		nullableString(entry.ErrorMessage), nullableString(entry.ErrorType),
		entry.StartedAt, entry.CompletedAt, entry.ExecutionTimeMs)
	if err != nil {
		return fmt.Errorf("failed to save execution log %s: %w", entry.ID, err)
	}

	return nil
}

func (s *executionStore) LogsByExecution(ctx context.Context, executionID string) ([]*models.WorkflowExecutionLog, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , node_mapping_id
		  , node_template_id
		  , node_type
		  , node_name
		  , status
		  , details
		  , error_message
		  , error_type
		  , started_at
		  , completed_at
		  , execution_time_ms
		FROM workflow_execution_logs
		WHERE execution_id = $1
		ORDER BY started_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer closeRows(s.logger, rows)

	logs := make([]*models.WorkflowExecutionLog, 0)

	for rows.Next() {
		var (
			entry        models.WorkflowExecutionLog
			details      []byte
			errorMessage sql.NullString
			errorType    sql.NullString
		)

		err := rows.Scan(
			&entry.ID, &entry.ExecutionID, &entry.NodeMappingID, &entry.NodeTemplateID,
			&entry.NodeType, &entry.NodeName, &entry.Status, &details,
			&errorMessage, &errorType, &entry.StartedAt, &entry.CompletedAt,
			&entry.ExecutionTimeMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		if err := unmarshalJSONColumn(details, &entry.Details); err != nil {
			return nil, err
		}

		entry.ErrorMessage = errorMessage.String
		entry.ErrorType = errorType.String

		logs = append(logs, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return logs, nil
}

func encodeExecutionData(execution *models.WorkflowExecution) ([]byte, []byte, error) {
	inputData, err := json.Marshal(execution.InputData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode input data: %w", err)
	}

	outputData, err := json.Marshal(execution.OutputData)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode output data: %w", err)
	}

	return inputData, outputData, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
