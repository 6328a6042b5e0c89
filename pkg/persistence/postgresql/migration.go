package postgresql

// migrations returns the schema migrations in version order. The partial unique
// index on workflows backs the single-active-workflow-per-type invariant at the
// storage level, independent of application logic.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				application_type TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				stages JSONB NOT NULL DEFAULT '[]',
				transitions JSONB NOT NULL DEFAULT '[]',
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX IF NOT EXISTS workflows_single_active_per_type
				ON workflows (application_type)
				WHERE is_active AND deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS status_entries (
				id TEXT PRIMARY KEY,
				application_id TEXT NOT NULL,
				stage_id TEXT NOT NULL,
				stage_name TEXT NOT NULL DEFAULT '',
				label TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS status_entries_application
				ON status_entries (application_id, created_at DESC, id DESC);

			CREATE INDEX IF NOT EXISTS status_entries_stage
				ON status_entries (stage_id);
		`,
	}
}
