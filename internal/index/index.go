// Package index provides a SQLite index of the snapshots stored in a
// workspace. The index lives in .lens/index.db and answers listings and
// statistics without decoding snapshot files.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hargabyte/lens/internal/snapshot"
)

// FileName is the database file inside the config directory.
const FileName = "index.db"

// tsLayout sorts lexicographically in UTC.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotIndexed is returned for snapshots missing from the index.
var ErrNotIndexed = errors.New("snapshot not indexed")

// Index manages the .lens/index.db SQLite database.
type Index struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the index database in the given directory.
func Open(dir string) (*Index, error) {
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	ix := &Index{db: db, dbPath: dbPath}
	if err := ix.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return ix, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Path returns the database file path.
func (ix *Index) Path() string {
	return ix.dbPath
}

// Clear removes every entry.
func (ix *Index) Clear() error {
	if _, err := ix.db.Exec("DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

// Entry is the indexed summary of one snapshot file.
type Entry struct {
	ProjectID  uuid.UUID
	SnapshotID uuid.UUID
	Kind       snapshot.Kind
	Name       string
	Timestamp  time.Time
	Hash       string
	Size       int64
	IndexedAt  time.Time
}

// NewEntry summarizes a snapshot and the bytes of its file.
func NewEntry(projectID uuid.UUID, s *snapshot.Snapshot, data []byte) Entry {
	return Entry{
		ProjectID:  projectID,
		SnapshotID: s.ID,
		Kind:       s.Kind,
		Name:       s.Name,
		Timestamp:  s.Timestamp,
		Hash:       snapshot.ContentHash(data),
		Size:       int64(len(data)),
	}
}

const upsertSQL = `
	INSERT OR REPLACE INTO snapshots
		(snapshot_id, project_id, kind, name, timestamp, hash, size, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (e Entry) args(now time.Time) []any {
	indexedAt := e.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = now
	}
	return []any{
		e.SnapshotID.String(), e.ProjectID.String(), string(e.Kind), e.Name,
		e.Timestamp.UTC().Format(tsLayout), e.Hash, e.Size,
		indexedAt.UTC().Format(tsLayout),
	}
}

// Record indexes a snapshot written to a project. It implements
// workspace.Indexer.
func (ix *Index) Record(projectID uuid.UUID, s *snapshot.Snapshot, data []byte) error {
	return ix.Put(NewEntry(projectID, s, data))
}

// Put inserts or replaces an entry.
func (ix *Index) Put(e Entry) error {
	if _, err := ix.db.Exec(upsertSQL, e.args(time.Now())...); err != nil {
		return fmt.Errorf("index snapshot %s: %w", e.SnapshotID, err)
	}
	return nil
}

// PutBulk inserts or replaces entries in one transaction.
func (ix *Index) PutBulk(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if _, err := stmt.Exec(e.args(now)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("index snapshot %s: %w", e.SnapshotID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RemoveProject drops every entry of a project. It implements
// workspace.Indexer.
func (ix *Index) RemoveProject(projectID uuid.UUID) error {
	if _, err := ix.db.Exec("DELETE FROM snapshots WHERE project_id = ?", projectID.String()); err != nil {
		return fmt.Errorf("unindex project %s: %w", projectID, err)
	}
	return nil
}

// Delete drops one entry.
func (ix *Index) Delete(snapshotID uuid.UUID) error {
	if _, err := ix.db.Exec("DELETE FROM snapshots WHERE snapshot_id = ?", snapshotID.String()); err != nil {
		return fmt.Errorf("unindex snapshot %s: %w", snapshotID, err)
	}
	return nil
}

const selectSQL = `
	SELECT snapshot_id, project_id, kind, name, timestamp, hash, size, indexed_at
	FROM snapshots`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                            Entry
		sid, pid, kind, ts, indexedAt string
	)
	if err := row.Scan(&sid, &pid, &kind, &e.Name, &ts, &e.Hash, &e.Size, &indexedAt); err != nil {
		return Entry{}, err
	}
	var err error
	if e.SnapshotID, err = uuid.Parse(sid); err != nil {
		return Entry{}, fmt.Errorf("bad snapshot id %q: %w", sid, err)
	}
	if e.ProjectID, err = uuid.Parse(pid); err != nil {
		return Entry{}, fmt.Errorf("bad project id %q: %w", pid, err)
	}
	e.Kind = snapshot.Kind(kind)
	e.Timestamp, _ = time.Parse(tsLayout, ts)
	e.IndexedAt, _ = time.Parse(tsLayout, indexedAt)
	return e, nil
}

// Get returns the entry of a snapshot, or ErrNotIndexed.
func (ix *Index) Get(snapshotID uuid.UUID) (*Entry, error) {
	e, err := scanEntry(ix.db.QueryRow(selectSQL+" WHERE snapshot_id = ?", snapshotID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", snapshotID, err)
	}
	return &e, nil
}

// IsChanged reports whether the snapshot's content hash differs from the
// indexed one. Unindexed snapshots count as changed.
func (ix *Index) IsChanged(snapshotID uuid.UUID, hash string) (bool, error) {
	e, err := ix.Get(snapshotID)
	if errors.Is(err, ErrNotIndexed) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return e.Hash != hash, nil
}

// Query filters List results. Zero fields match everything; the time range
// is start inclusive, end exclusive.
type Query struct {
	ProjectID uuid.UUID
	Kind      snapshot.Kind
	Start     *time.Time
	End       *time.Time
	Limit     int
}

// List returns matching entries ordered by timestamp.
func (ix *Index) List(q Query) ([]Entry, error) {
	query := selectSQL + " WHERE 1=1"
	var args []any
	if q.ProjectID != uuid.Nil {
		query += " AND project_id = ?"
		args = append(args, q.ProjectID.String())
	}
	if q.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(q.Kind))
	}
	if q.Start != nil {
		query += " AND timestamp >= ?"
		args = append(args, q.Start.UTC().Format(tsLayout))
	}
	if q.End != nil {
		query += " AND timestamp < ?"
		args = append(args, q.End.UTC().Format(tsLayout))
	}
	query += " ORDER BY timestamp, snapshot_id"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := ix.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Stats summarizes the index contents.
type Stats struct {
	Projects   int64
	Snapshots  int64
	Reports    int64
	TestSuites int64
	TotalBytes int64
	Oldest     time.Time
	Newest     time.Time
}

// GetStats returns statistics about the index contents.
func (ix *Index) GetStats() (*Stats, error) {
	var (
		stats          Stats
		oldest, newest sql.NullString
	)
	err := ix.db.QueryRow(`
		SELECT COUNT(DISTINCT project_id), COUNT(*), COALESCE(SUM(size), 0), MIN(timestamp), MAX(timestamp)
		FROM snapshots`).Scan(&stats.Projects, &stats.Snapshots, &stats.TotalBytes, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(tsLayout, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(tsLayout, newest.String)
	}

	err = ix.db.QueryRow("SELECT COUNT(*) FROM snapshots WHERE kind = ?", string(snapshot.KindReport)).Scan(&stats.Reports)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	err = ix.db.QueryRow("SELECT COUNT(*) FROM snapshots WHERE kind = ?", string(snapshot.KindTestSuite)).Scan(&stats.TestSuites)
	if err != nil {
		return nil, fmt.Errorf("count test suites: %w", err)
	}
	return &stats, nil
}
