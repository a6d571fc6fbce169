// Package store persists macros, run logs, file tags and a full-text
// document index in a single SQLite database.
//
// Invariants:
// - Macros are upserted by name and always loaded whole.
// - Runs are append-only.
// - Re-indexing a path replaces its earlier document.
// - Document search uses FTS5 when the SQLite build has it and LIKE otherwise.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LetsVenture2021/FollowGPT/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Config holds store configuration
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// Store is the SQLite-backed persistence layer
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	fts    bool
}

// Open opens (creating if needed) the database at cfg.Path
func Open(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases and WAL writers consistent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().
		Str("path", cfg.Path).
		Bool("fts5", s.fts).
		Msg("Store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS macros (
			name TEXT PRIMARY KEY,
			steps TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tags (
			file TEXT NOT NULL,
			tag TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (file, tag)
		);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			prompt TEXT,
			plan TEXT,
			result TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS fts_docs USING fts5(path UNINDEXED, content, tokenize='porter unicode61')`)
	if err == nil {
		s.fts = true
		return nil
	}
	s.logger.Warn().Err(err).Msg("FTS5 unavailable, falling back to LIKE search")

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS docs (
			path TEXT PRIMARY KEY,
			content TEXT NOT NULL
		);
	`)
	return err
}

// FTSEnabled reports whether documents are searched through FTS5
func (s *Store) FTSEnabled() bool {
	return s.fts
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
