package sqlite

import "fmt"

// Referential cleanup between these tables is the adapter's responsibility:
// edges are deleted explicitly before their note, never via cascade.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id                   TEXT PRIMARY KEY,
	content              TEXT NOT NULL,
	key_context          TEXT NOT NULL DEFAULT '',
	tags                 TEXT NOT NULL DEFAULT '[]',
	note_type            TEXT,
	embedding            TEXT,
	embedding_model      TEXT,
	embedding_created_at DATETIME,
	deadline             DATETIME,
	status               TEXT,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);
CREATE INDEX IF NOT EXISTS idx_notes_key_context ON notes(key_context);

CREATE TABLE IF NOT EXISTS contexts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notes_contexts (
	note_id    TEXT NOT NULL,
	context_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (note_id, context_id)
);

CREATE INDEX IF NOT EXISTS idx_notes_contexts_context ON notes_contexts(context_id);
`

// ensureVecTable creates the vec0 virtual similarity-search table. The
// rowid is keyed to notes.rowid so KNN hits join back without a text key
// (vec0's TEXT PRIMARY KEY partitioning breaks KNN queries).
func (s *Store) ensureVecTable() error {
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_vec USING vec0(
			embedding float[%d] distance_metric=cosine,
			+note_id TEXT
		)
	`, s.dim))
	return err
}
