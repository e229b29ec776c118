package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
)

// FetchContextStats returns contexts with their usage counts and most
// recent link time, most used first.
func (s *Store) FetchContextStats(ctx context.Context, limit, offset int) (*store.ContextStatsPage, error) {
	if limit <= 0 {
		limit = store.DefaultFilterLimit
	}
	if offset < 0 {
		offset = 0
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	// Fetch one extra row to derive hasMore without a second count query.
	rows, err := conn.Query(ctx, `
		SELECT c.id, c.name, COUNT(nc.note_id), MAX(nc.created_at)
		FROM contexts c
		LEFT JOIN notes_contexts nc ON nc.context_id = c.id
		GROUP BY c.id, c.name
		ORDER BY COUNT(nc.note_id) DESC, c.name ASC
		LIMIT $1 OFFSET $2
	`, limit+1, offset)
	if err != nil {
		return nil, apperr.Persistence("fetch context stats", err)
	}
	defer rows.Close()

	stats := []models.ContextStat{}
	for rows.Next() {
		var st models.ContextStat
		var count int64
		if err := rows.Scan(&st.ID, &st.Name, &count, &st.LastUsed); err != nil {
			return nil, apperr.Persistence("scan context stats", err)
		}
		st.Count = int(count)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("fetch context stats", err)
	}

	hasMore := len(stats) > limit
	if hasMore {
		stats = stats[:limit]
	}
	return &store.ContextStatsPage{Contexts: stats, HasMore: hasMore}, nil
}

// SearchContexts matches context names by substring for autocomplete. An
// empty term returns empty results without querying.
func (s *Store) SearchContexts(ctx context.Context, term string, limit int) ([]models.Context, error) {
	if strings.TrimSpace(term) == "" {
		return []models.Context{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	pattern := "%" + escapeLike(term) + "%"
	rows, err := conn.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM contexts
		WHERE name ILIKE $1
		ORDER BY name ASC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, apperr.Persistence("search contexts", err)
	}
	defer rows.Close()

	out := []models.Context{}
	for rows.Next() {
		var c models.Context
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperr.Persistence("scan context", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("search contexts", err)
	}
	return out, nil
}

// ContextExists probes for a context by name. Probe failures report false.
func (s *Store) ContextExists(ctx context.Context, name string) bool {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		s.logger.Warn("context existence probe failed",
			slog.String("name", name), slog.String("error", err.Error()))
		return false
	}
	defer conn.Release()

	var one int
	err = conn.QueryRow(ctx, `SELECT 1 FROM contexts WHERE name = $1`, name).Scan(&one)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("context existence probe failed",
				slog.String("name", name), slog.String("error", err.Error()))
		}
		return false
	}
	return true
}

// RenameContext renames oldName to newName, or merges it into an existing
// newName, inside a single transaction. Any failure rolls the whole
// transaction back; readers never observe a partial relink.
func (s *Store) RenameContext(ctx context.Context, oldName, newName string) (*store.RenameResult, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Transaction("acquire connection", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, apperr.Transaction("begin rename", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	res, err := store.RunRename(ctx, &mergeTx{tx: tx}, oldName, newName)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return nil, apperr.Transaction(fmt.Sprintf("rename context %q to %q", oldName, newName), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Transaction("commit rename", err)
	}
	return res, nil
}

// mergeTx implements store.MergeTx over a pgx transaction.
type mergeTx struct {
	tx pgx.Tx
}

func (m *mergeTx) ContextByName(ctx context.Context, name string) (*models.Context, error) {
	var c models.Context
	err := m.tx.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM contexts WHERE name = $1`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *mergeTx) RenameContextRow(ctx context.Context, id, newName string) error {
	_, err := m.tx.Exec(ctx,
		`UPDATE contexts SET name = $1, updated_at = $2 WHERE id = $3`, newName, time.Now().UTC(), id)
	return err
}

func (m *mergeTx) DeleteContextRow(ctx context.Context, id string) error {
	_, err := m.tx.Exec(ctx, `DELETE FROM contexts WHERE id = $1`, id)
	return err
}

func (m *mergeTx) NoteIDsByContext(ctx context.Context, contextID string) ([]string, error) {
	rows, err := m.tx.Query(ctx,
		`SELECT note_id FROM notes_contexts WHERE context_id = $1`, contextID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (m *mergeTx) DeleteEdges(ctx context.Context, contextID string, noteIDs []string) error {
	_, err := m.tx.Exec(ctx,
		`DELETE FROM notes_contexts WHERE context_id = $1 AND note_id = ANY($2)`, contextID, noteIDs)
	return err
}

func (m *mergeTx) MoveEdges(ctx context.Context, fromID, toID string, noteIDs []string) error {
	_, err := m.tx.Exec(ctx,
		`UPDATE notes_contexts SET context_id = $1 WHERE context_id = $2 AND note_id = ANY($3)`,
		toID, fromID, noteIDs)
	return err
}

func (m *mergeTx) NotesContent(ctx context.Context, noteIDs []string) ([]store.NoteContent, error) {
	rows, err := m.tx.Query(ctx,
		`SELECT id, content, key_context FROM notes WHERE id = ANY($1)`, noteIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.NoteContent
	for rows.Next() {
		var n store.NoteContent
		if err := rows.Scan(&n.ID, &n.Content, &n.KeyContext); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (m *mergeTx) UpdateNoteContent(ctx context.Context, noteID, content, keyContext string) error {
	_, err := m.tx.Exec(ctx,
		`UPDATE notes SET content = $1, key_context = $2, updated_at = $3 WHERE id = $4`,
		content, keyContext, time.Now().UTC(), noteID)
	return err
}

// escapeLike escapes LIKE wildcards in a user-supplied search term.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
