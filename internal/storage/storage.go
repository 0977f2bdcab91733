package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a queried row does not exist locally.
var ErrNotFound = errors.New("storage: not found")

// Store wraps SQLite-backed persistence for the Zooniverse mirror.
type Store struct {
	DB *sql.DB // Export for direct database access
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS subject_sets (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            zooniverse_id INTEGER NOT NULL UNIQUE,
            zooniverse_project_id INTEGER,
            zooniverse_workflow_id INTEGER,
            priority INTEGER,
            display_name TEXT,
            weight REAL NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS subjects (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            zooniverse_id INTEGER NOT NULL UNIQUE,
            content_kind TEXT NOT NULL,
            content_id INTEGER NOT NULL,
            zooniverse_subject_set_id INTEGER,
            zooniverse_workflow_id INTEGER,
            retired BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE TABLE IF NOT EXISTS sonifications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            source_path TEXT,
            machine_confidence REAL
        );`,
		`CREATE TABLE IF NOT EXISTS stamps (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            source_path TEXT,
            machine_confidence REAL
        );`,
		`CREATE TABLE IF NOT EXISTS classifications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            zooniverse_id INTEGER NOT NULL UNIQUE,
            subject_id INTEGER NOT NULL REFERENCES subjects(id),
            answer TEXT,
            reducer TEXT,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            finished_at TIMESTAMP,
            processed INTEGER NOT NULL DEFAULT 0,
            total INTEGER NOT NULL DEFAULT 0,
            error_message TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_subject_sets_workflow ON subject_sets(zooniverse_workflow_id);`,
		`CREATE INDEX IF NOT EXISTS idx_subjects_subject_set ON subjects(zooniverse_subject_set_id);`,
		`CREATE INDEX IF NOT EXISTS idx_classifications_subject ON classifications(subject_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Tx wraps a local transaction used for batched commits during binning
// and mirror sync. Rows written through a Tx become visible to other
// readers only after Commit.
type Tx struct {
	tx *sql.Tx
}

// Begin opens a new local transaction.
func (s *Store) Begin() (*Tx, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store not initialized")
	}
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
