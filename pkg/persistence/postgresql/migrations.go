package postgresql

// migrations returns the ordered schema for the engine's tables. The unique
// indexes on node_dedupe_records and workflow_schedule_runs are load-bearing:
// concurrent engine instances rely on them for exactly-once recording.
func migrations() map[int]string {
	return map[int]string{
		1: `
		CREATE TABLE IF NOT EXISTS workflows (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			institute_id VARCHAR(255) NOT NULL,
			created_by VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS node_templates (
			id VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(64) NOT NULL,
			config_version INTEGER NOT NULL DEFAULT 1,
			config JSONB,
			status VARCHAR(32) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS workflow_node_mappings (
			id VARCHAR(255) PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
			node_template_id VARCHAR(255) NOT NULL REFERENCES node_templates(id),
			node_order INTEGER NOT NULL,
			is_start_node BOOLEAN NOT NULL DEFAULT FALSE,
			is_end_node BOOLEAN NOT NULL DEFAULT FALSE,
			continue_on_error BOOLEAN NOT NULL DEFAULT FALSE,
			override_config JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (workflow_id, node_order)
		);

		CREATE TABLE IF NOT EXISTS workflow_executions (
			id VARCHAR(255) PRIMARY KEY,
			execution_id VARCHAR(255) NOT NULL UNIQUE,
			workflow_id VARCHAR(255) NOT NULL,
			schedule_id VARCHAR(255),
			schedule_run_id VARCHAR(255),
			status VARCHAR(32) NOT NULL,
			current_node_id VARCHAR(255),
			input_data JSONB,
			output_data JSONB,
			cancel_requested BOOLEAN NOT NULL DEFAULT FALSE,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			completed_at TIMESTAMP WITH TIME ZONE
		);

		CREATE TABLE IF NOT EXISTS workflow_execution_logs (
			id VARCHAR(255) PRIMARY KEY,
			execution_id VARCHAR(255) NOT NULL,
			node_mapping_id VARCHAR(255),
			node_template_id VARCHAR(255),
			node_type VARCHAR(64),
			node_name VARCHAR(255),
			status VARCHAR(32) NOT NULL,
			details JSONB,
			error_message TEXT,
			error_type VARCHAR(64),
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			completed_at TIMESTAMP WITH TIME ZONE,
			execution_time_ms BIGINT
		);
		CREATE INDEX IF NOT EXISTS idx_execution_logs_execution
			ON workflow_execution_logs (execution_id, started_at);

		CREATE TABLE IF NOT EXISTS workflow_schedules (
			id VARCHAR(255) PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			cron_expression VARCHAR(255),
			interval_minutes INTEGER,
			day_of_month INTEGER,
			fire_time VARCHAR(8),
			timezone VARCHAR(64),
			start_date TIMESTAMP WITH TIME ZONE,
			end_date TIMESTAMP WITH TIME ZONE,
			status VARCHAR(32) NOT NULL,
			last_run_at TIMESTAMP WITH TIME ZONE,
			next_run_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_schedules_due
			ON workflow_schedules (status, next_run_at);

		CREATE TABLE IF NOT EXISTS workflow_schedule_runs (
			id VARCHAR(255) PRIMARY KEY,
			schedule_id VARCHAR(255) NOT NULL,
			workflow_id VARCHAR(255) NOT NULL,
			planned_run_at TIMESTAMP WITH TIME ZONE NOT NULL,
			fired_at TIMESTAMP WITH TIME ZONE,
			status VARCHAR(32) NOT NULL,
			dedupe_key VARCHAR(512) NOT NULL UNIQUE,
			error_message TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS workflow_triggers (
			id VARCHAR(255) PRIMARY KEY,
			institute_id VARCHAR(255) NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			workflow_id VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			idempotency JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (institute_id, event_name)
		);

		CREATE TABLE IF NOT EXISTS node_dedupe_records (
			id VARCHAR(255) PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			node_template_id VARCHAR(255),
			scope VARCHAR(255),
			schedule_run_id VARCHAR(255),
			operation_key VARCHAR(512) NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_dedupe_logical_key
			ON node_dedupe_records (
				workflow_id,
				COALESCE(node_template_id, ''),
				COALESCE(scope, ''),
				operation_key
			);
		`,
	}
}
