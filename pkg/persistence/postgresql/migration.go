package postgresql

// migrations returns the ordered schema migrations for the outreach engine.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				enabled BOOLEAN NOT NULL DEFAULT FALSE,
				graph JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS contacts (
				id TEXT PRIMARY KEY,
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				do_not_contact BOOLEAN NOT NULL DEFAULT FALSE,
				custom JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS templates (
				id TEXT PRIMARY KEY,
				channel TEXT NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE IF NOT EXISTS provider_settings (
				channel TEXT PRIMARY KEY,
				account_id TEXT NOT NULL DEFAULT '',
				auth_token TEXT NOT NULL DEFAULT '',
				from_address TEXT NOT NULL DEFAULT '',
				signing_secret TEXT NOT NULL DEFAULT ''
			);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS enrollments (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows(id),
				contact_id TEXT NOT NULL REFERENCES contacts(id),
				status TEXT NOT NULL DEFAULT 'active',
				enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_enrollments_workflow_contact
				ON enrollments (workflow_id, contact_id) WHERE status = 'active';

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
				workflow_id TEXT NOT NULL,
				contact_id TEXT NOT NULL,
				current_node_id TEXT,
				next_run_at TIMESTAMP WITH TIME ZONE,
				status TEXT NOT NULL DEFAULT 'not_started',
				claimed_by TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_executions_due
				ON executions (next_run_at) WHERE status IN ('waiting', 'not_started');
		`,
		3: `
			CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				contact_id TEXT NOT NULL,
				channel TEXT NOT NULL,
				direction TEXT NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'queued',
				provider_id TEXT,
				provider_error TEXT NOT NULL DEFAULT '',
				execution_id TEXT,
				scheduled_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_provider_id
				ON messages (provider_id) WHERE provider_id IS NOT NULL;

			CREATE INDEX IF NOT EXISTS idx_messages_scheduled
				ON messages (scheduled_at) WHERE status = 'scheduled';

			CREATE INDEX IF NOT EXISTS idx_messages_inbound
				ON messages (contact_id, created_at) WHERE direction = 'inbound';
		`,
	}
}
