// Package fileref is the FileRef identity registry: a small sqlite-
// backed table mapping canonical_file_id to a file's current path,
// kind, size and mtime, so PathCoordinator can resolve a move without
// re-walking the tree.
package fileref

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Kind mirrors analyzer.Kind without importing it, keeping fileref a
// leaf package with no dependency on the analyzer.
type Kind string

const (
	KindDocument Kind = "doc"
	KindImage    Kind = "image"
)

// CanonicalID computes canonical_file_id = hash(normalized_absolute_path, kind).
func CanonicalID(path string, kind Kind) string {
	norm := filepath.ToSlash(filepath.Clean(path))
	sum := sha256.Sum256([]byte(string(kind) + "|" + norm))
	return "file:" + hex.EncodeToString(sum[:])
}

// Record is one tracked file's identity row.
type Record struct {
	ID        string
	Path      string
	Kind      Kind
	Size      int64
	ModTimeMs int64
	UpdatedAt time.Time
}

// Registry wraps a sqlite-backed table of Records.
type Registry struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS file_refs (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    mtime_ms INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_file_refs_path ON file_refs(path);
`

// Open creates or opens the sqlite registry at path.
func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fileref: mkdir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("fileref: open: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("fileref: ping: %w", err)
	}

	r := &Registry{db: sqlDB}
	if err := r.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("fileref: migrate: %w", err)
	}
	return r, nil
}

// OpenMemory opens an in-memory registry, for tests.
func OpenMemory() (*Registry, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("fileref: open memory: %w", err)
	}
	r := &Registry{db: sqlDB}
	if err := r.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("fileref: migrate: %w", err)
	}
	return r, nil
}

func (r *Registry) migrate() error {
	_, err := r.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Upsert creates or replaces the row for rec.ID.
func (r *Registry) Upsert(rec Record) error {
	_, err := r.db.Exec(
		`INSERT INTO file_refs (id, path, kind, size, mtime_ms, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   path=excluded.path, kind=excluded.kind, size=excluded.size,
		   mtime_ms=excluded.mtime_ms, updated_at=excluded.updated_at`,
		rec.ID, rec.Path, string(rec.Kind), rec.Size, rec.ModTimeMs, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("fileref: upsert %q: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record for id, or (Record{}, false) if untracked.
func (r *Registry) Get(id string) (Record, bool) {
	row := r.db.QueryRow(`SELECT id, path, kind, size, mtime_ms, updated_at FROM file_refs WHERE id = ?`, id)
	var rec Record
	var kind string
	if err := row.Scan(&rec.ID, &rec.Path, &kind, &rec.Size, &rec.ModTimeMs, &rec.UpdatedAt); err != nil {
		return Record{}, false
	}
	rec.Kind = Kind(kind)
	return rec, true
}

// GetByPath returns the record currently tracked at path, if any.
func (r *Registry) GetByPath(path string) (Record, bool) {
	row := r.db.QueryRow(`SELECT id, path, kind, size, mtime_ms, updated_at FROM file_refs WHERE path = ?`, path)
	var rec Record
	var kind string
	if err := row.Scan(&rec.ID, &rec.Path, &kind, &rec.Size, &rec.ModTimeMs, &rec.UpdatedAt); err != nil {
		return Record{}, false
	}
	rec.Kind = Kind(kind)
	return rec, true
}

// Delete removes the row for id. Deleting a nonexistent id is a no-op.
func (r *Registry) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM file_refs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("fileref: delete %q: %w", id, err)
	}
	return nil
}

// Rename atomically replaces the row for oldID with a new row at
// newID/newPath, preserving size/mtime/kind, in one transaction — the
// PathCoordinator's move primitive.
func (r *Registry) Rename(oldID, newID, newPath string, updatedAt time.Time) (Record, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("fileref: begin rename: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT kind, size, mtime_ms FROM file_refs WHERE id = ?`, oldID)
	var kind string
	var size, mtimeMs int64
	if err := row.Scan(&kind, &size, &mtimeMs); err != nil {
		return Record{}, fmt.Errorf("fileref: rename: source %q not found: %w", oldID, err)
	}

	if _, err := tx.Exec(`DELETE FROM file_refs WHERE id = ?`, oldID); err != nil {
		return Record{}, fmt.Errorf("fileref: rename: delete old: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO file_refs (id, path, kind, size, mtime_ms, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   path=excluded.path, kind=excluded.kind, size=excluded.size,
		   mtime_ms=excluded.mtime_ms, updated_at=excluded.updated_at`,
		newID, newPath, kind, size, mtimeMs, updatedAt,
	); err != nil {
		return Record{}, fmt.Errorf("fileref: rename: insert new: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("fileref: rename: commit: %w", err)
	}

	return Record{ID: newID, Path: newPath, Kind: Kind(kind), Size: size, ModTimeMs: mtimeMs, UpdatedAt: updatedAt}, nil
}
