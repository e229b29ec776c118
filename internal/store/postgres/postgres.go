// Package postgres implements the store.Adapter contract on PostgreSQL
// with the pgvector extension. Similarity search is served by the
// match_notes SQL function so the ordering and threshold filtering happen
// server-side.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Store is the relational PostgreSQL adapter.
type Store struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

// New connects to the database, registers the pgvector codecs, and applies
// the schema. dim is the embedding column dimension.
func New(ctx context.Context, dsn string, dim int, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool, dim: dim, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	// Referential cleanup between these tables is handled by the adapter,
	// not cascades, to keep the contract identical to the embedded backend.
	schema := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS notes (
	id                   text PRIMARY KEY,
	content              text NOT NULL,
	key_context          text NOT NULL DEFAULT '',
	tags                 text[] NOT NULL DEFAULT '{}',
	note_type            text,
	embedding            vector(%[1]d),
	embedding_model      text,
	embedding_created_at timestamptz,
	deadline             timestamptz,
	status               text,
	created_at           timestamptz NOT NULL,
	updated_at           timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes (created_at);
CREATE INDEX IF NOT EXISTS idx_notes_key_context ON notes (key_context);

CREATE TABLE IF NOT EXISTS contexts (
	id         text PRIMARY KEY,
	name       text NOT NULL UNIQUE,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS notes_contexts (
	note_id    text NOT NULL,
	context_id text NOT NULL,
	created_at timestamptz NOT NULL,
	PRIMARY KEY (note_id, context_id)
);

CREATE INDEX IF NOT EXISTS idx_notes_contexts_context ON notes_contexts (context_id);

CREATE OR REPLACE FUNCTION match_notes(
	query_embedding vector(%[1]d),
	match_threshold double precision,
	match_count     integer
)
RETURNS TABLE (
	id          text,
	content     text,
	key_context text,
	contexts    text[],
	tags        text[],
	note_type   text,
	created_at  timestamptz,
	updated_at  timestamptz,
	similarity  double precision
)
LANGUAGE sql STABLE AS $$
	SELECT n.id, n.content, n.key_context,
	       COALESCE(array_agg(c.name ORDER BY c.name) FILTER (WHERE c.name IS NOT NULL), '{}'),
	       n.tags, n.note_type, n.created_at, n.updated_at,
	       1 - (n.embedding <=> query_embedding) AS similarity
	FROM notes n
	LEFT JOIN notes_contexts nc ON nc.note_id = n.id
	LEFT JOIN contexts c ON c.id = nc.context_id
	WHERE n.embedding IS NOT NULL
	  AND 1 - (n.embedding <=> query_embedding) >= match_threshold
	GROUP BY n.id
	ORDER BY similarity DESC
	LIMIT match_count;
$$;
`, s.dim)

	_, err = conn.Exec(ctx, schema)
	return err
}

// dialect supplies the PostgreSQL-specific fragments for the filter
// compiler.
type dialect struct{}

func (dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (dialect) TagsAny(start, count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", start+i)
	}
	return fmt.Sprintf("notes.tags && ARRAY[%s]::text[]", strings.Join(ph, ","))
}
