package index

// schemaSQL defines the SQLite schema for the snapshot index.
// Tables:
//   - snapshots: one row per snapshot file (project, kind, timestamp, content hash, size)
const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    hash TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    indexed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_kind ON snapshots(kind);
`

// initSchema creates the database tables and indexes if they don't exist.
func (ix *Index) initSchema() error {
	_, err := ix.db.Exec(schemaSQL)
	return err
}
