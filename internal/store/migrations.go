package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id          INTEGER PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	completed   INTEGER NOT NULL DEFAULT 0 CHECK(completed IN (0, 1)),
	priority    TEXT NOT NULL DEFAULT 'medium',
	due_date    DATETIME,
	tags        TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);

CREATE TABLE IF NOT EXISTS pending_operations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	client_ref  TEXT NOT NULL,
	type        TEXT NOT NULL CHECK(type IN ('create', 'update', 'delete', 'complete')),
	task_id     INTEGER,
	data        TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_operations_created_at
	ON pending_operations(created_at);

CREATE TABLE IF NOT EXISTS metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// SchemaVersion is the version the latest migration brings the database to.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}
