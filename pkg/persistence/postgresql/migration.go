package postgresql

// Tenant-database schema. Business entity tables store their payloads as
// JSONB documents; workflow configuration columns are JSONB so the editor
// can evolve configs without schema churn.
func tenantMigrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				tenant_id BIGINT NOT NULL,
				name TEXT NOT NULL,
				type TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'inactive',
				created_by TEXT NOT NULL DEFAULT '',
				trigger_config JSONB NOT NULL DEFAULT '{}',
				export_config JSONB NOT NULL DEFAULT '{}',
				auth_config JSONB NOT NULL DEFAULT '{}',
				total_runs BIGINT NOT NULL DEFAULT 0,
				success_runs BIGINT NOT NULL DEFAULT 0,
				failed_runs BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_status
				ON workflows(status);
			CREATE INDEX IF NOT EXISTS idx_workflows_trigger_type
				ON workflows((trigger_config->>'trigger_type'));
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflow_execution_logs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				tenant_id BIGINT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				status TEXT NOT NULL,
				request_payload JSONB NOT NULL DEFAULT '{}',
				per_entity_results JSONB NOT NULL DEFAULT '[]',
				email_status TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_workflow
				ON workflow_execution_logs(workflow_id, started_at DESC);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS idempotency_keys (
				key TEXT PRIMARY KEY,
				response_status INTEGER,
				response_body JSONB,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS rate_limit_windows (
				key TEXT NOT NULL,
				window_start TIMESTAMP WITH TIME ZONE NOT NULL,
				request_count BIGINT NOT NULL DEFAULT 0,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (key, window_start)
			);
		`,
		4: `
			CREATE TABLE IF NOT EXISTS vehicles (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS master_vehicles (LIKE vehicles INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS workshops (LIKE vehicles INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS workshop_reports (LIKE vehicles INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS workshop_quotes (LIKE vehicles INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS customers (LIKE vehicles INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS invoices (LIKE vehicles INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS transport_jobs (LIKE vehicles INCLUDING ALL);
		`,
	}
}

// Main (shared) database schema: cross-tenant platform entities.
func mainMigrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS plans (LIKE accounts INCLUDING ALL);
			CREATE TABLE IF NOT EXISTS companies (LIKE accounts INCLUDING ALL);
		`,
	}
}
