package db

// SchemaVersion is the current queue database schema version.
const SchemaVersion = 2

const schema = `
-- Pending operations queue: writes awaiting remote commit.
CREATE TABLE IF NOT EXISTS pending_operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    payload JSON NOT NULL,
    enqueued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    synced INTEGER NOT NULL DEFAULT 0,
    synced_at DATETIME,
    remote_id TEXT NOT NULL DEFAULT '',
    attempts INTEGER NOT NULL DEFAULT 0,
    next_attempt_at DATETIME,
    last_error TEXT DEFAULT '',
    dead INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pending_unsynced ON pending_operations(synced, dead, id);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Migration represents a single schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations are applied in order to databases below SchemaVersion.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "Add retry bookkeeping and remote ID to pending_operations",
		SQL: `
			ALTER TABLE pending_operations ADD COLUMN remote_id TEXT NOT NULL DEFAULT '';
			ALTER TABLE pending_operations ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE pending_operations ADD COLUMN next_attempt_at DATETIME;
			ALTER TABLE pending_operations ADD COLUMN last_error TEXT DEFAULT '';
			ALTER TABLE pending_operations ADD COLUMN dead INTEGER NOT NULL DEFAULT 0;
		`,
	},
}
