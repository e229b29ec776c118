// Package sqlite implements the store.Adapter contract on a single-file
// embedded SQLite database. Vector search goes through a sqlite-vec vec0
// virtual table when the extension is available, with a Go-side cosine
// scan over JSON-encoded embeddings as fallback.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// Store is the embedded SQLite adapter.
type Store struct {
	db           *sql.DB
	dim          int
	vecAvailable bool
	logger       *slog.Logger
}

// Open opens (or creates) the database, applies the schema, and probes for
// the sqlite-vec extension. dim is the embedding dimension used for the
// similarity-search virtual table.
func Open(path string, dim int, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	s := &Store{db: db, dim: dim, logger: logger}

	var vecVersion string
	if err := db.QueryRow(`SELECT vec_version()`).Scan(&vecVersion); err != nil {
		logger.Warn("sqlite-vec not available, semantic search will scan embeddings in-process",
			slog.String("error", err.Error()))
	} else {
		s.vecAvailable = true
		if err := s.ensureVecTable(); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: create vector table: %w", err)
		}
		logger.Debug("sqlite-vec loaded", slog.String("version", vecVersion))
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// dialect supplies the SQLite-specific fragments for the filter compiler.
type dialect struct{}

func (dialect) Placeholder(int) string { return "?" }

func (dialect) TagsAny(_, count int) string {
	ph := strings.TrimSuffix(strings.Repeat("?,", count), ",")
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN (%s))", ph)
}

// placeholders renders n comma-separated bind markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
