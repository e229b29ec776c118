package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
)

const noteColumns = `notes.id, notes.content, notes.key_context, notes.tags, notes.note_type,
	notes.embedding, notes.embedding_model, notes.embedding_created_at,
	notes.deadline, notes.status, notes.created_at, notes.updated_at`

// CreateNote persists a new note and links every named context, the key
// context included. Contexts are upserted by name.
func (s *Store) CreateNote(ctx context.Context, p store.CreateNoteParams) (*models.Note, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, apperr.Persistence("begin create note", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO notes (id, content, key_context, tags, note_type, deadline, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, p.ID, p.Content, p.KeyContext, nonNil(p.Tags), enumPtr(p.NoteType), p.Deadline, enumPtr(p.Status), now)
	if err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("insert note %s", p.ID), err)
	}

	if err := linkContexts(ctx, tx, p.ID, store.LinkSet(p.KeyContext, p.Contexts), now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Persistence("commit create note", err)
	}
	return s.getNote(ctx, conn, p.ID)
}

// UpdateNote applies a partial update. A present Contexts field fully
// replaces the note's edges (delete-all-then-insert, not a diff).
func (s *Store) UpdateNote(ctx context.Context, id string, patch store.NotePatch) (*models.Note, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: note %s", apperr.ErrNoOp, id)
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, apperr.Persistence("begin update note", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	sets := []string{"updated_at = $1"}
	args := []any{now}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.KeyContext != nil {
		add("key_context", *patch.KeyContext)
	}
	if patch.Tags != nil {
		add("tags", nonNil(*patch.Tags))
	}
	if patch.NoteType != nil {
		add("note_type", string(*patch.NoteType))
	}
	if patch.Deadline != nil {
		add("deadline", *patch.Deadline)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Embedding != nil {
		add("embedding", pgvector.NewVector(patch.Embedding))
		add("embedding_model", patch.EmbeddingModel)
		add("embedding_created_at", now)
	}

	args = append(args, id)
	res, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE notes SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("update note %s", id), err)
	}
	if res.RowsAffected() == 0 {
		return nil, apperr.NotFoundf("note %s", id)
	}

	if patch.Contexts != nil {
		var keyContext string
		if err := tx.QueryRow(ctx, `SELECT key_context FROM notes WHERE id = $1`, id).Scan(&keyContext); err != nil {
			return nil, apperr.Persistence("load note key context", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM notes_contexts WHERE note_id = $1`, id); err != nil {
			return nil, apperr.Persistence("replace note edges", err)
		}
		if err := linkContexts(ctx, tx, id, store.LinkSet(keyContext, *patch.Contexts), now); err != nil {
			return nil, err
		}
	} else if patch.KeyContext != nil {
		// The key context is edge-linked like any other context, so a
		// key-context-only patch still upserts and links the new name.
		if err := linkContexts(ctx, tx, id, []string{*patch.KeyContext}, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Persistence("commit update note", err)
	}
	return s.getNote(ctx, conn, id)
}

// DeleteNote removes the note's edges first, then the note row. A missing
// id is not an error.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return apperr.Persistence("begin delete note", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM notes_contexts WHERE note_id = $1`, id); err != nil {
		return apperr.Persistence("delete note edges", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id); err != nil {
		return apperr.Persistence("delete note", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Persistence("commit delete note", err)
	}
	return nil
}

// FetchNotes returns notes matching the key context and/or named contexts,
// newest first. MethodAND requires every listed context, MethodOR any.
func (s *Store) FetchNotes(ctx context.Context, p store.FetchParams) ([]models.Note, error) {
	if p.KeyContext == "" && len(p.Contexts) == 0 {
		return nil, apperr.Validationf("fetch requires a key context or at least one context")
	}

	var preds []string
	var args []any
	if p.KeyContext != "" {
		args = append(args, p.KeyContext)
		preds = append(preds, fmt.Sprintf("notes.key_context = $%d", len(args)))
	}
	if len(p.Contexts) > 0 {
		if p.Method == store.MethodAND {
			for _, name := range p.Contexts {
				args = append(args, name)
				preds = append(preds, fmt.Sprintf(
					"notes.id IN (SELECT nc.note_id FROM notes_contexts nc JOIN contexts c ON c.id = nc.context_id WHERE c.name = $%d)",
					len(args)))
			}
		} else {
			args = append(args, p.Contexts)
			preds = append(preds, fmt.Sprintf(
				"notes.id IN (SELECT nc.note_id FROM notes_contexts nc JOIN contexts c ON c.id = nc.context_id WHERE c.name = ANY($%d))",
				len(args)))
		}
	}

	joiner := " OR "
	if p.Method == store.MethodAND {
		joiner = " AND "
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + strings.Join(preds, joiner) + ` ORDER BY notes.created_at DESC`
	notes, err := queryNotes(ctx, conn, query, args...)
	if err != nil {
		return nil, apperr.Persistence("fetch notes", err)
	}
	return notes, nil
}

// FetchNotesByIDs returns the matching notes in arbitrary order. An empty
// input returns an empty result without querying.
func (s *Store) FetchNotesByIDs(ctx context.Context, ids []string) ([]models.Note, error) {
	if len(ids) == 0 {
		return []models.Note{}, nil
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	notes, err := queryNotes(ctx, conn, `SELECT `+noteColumns+` FROM notes WHERE notes.id = ANY($1)`, ids)
	if err != nil {
		return nil, apperr.Persistence("fetch notes by ids", err)
	}
	return notes, nil
}

// FilterNotes compiles the filter and runs the page query and the
// unlimited count query in parallel on separate connections.
func (s *Store) FilterNotes(ctx context.Context, f *store.NoteFilter) (*store.FilterResult, error) {
	c := store.CompileFilter(f, dialect{})

	var notes []models.Note
	var total int

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		conn, err := s.pool.Acquire(gCtx)
		if err != nil {
			return err
		}
		defer conn.Release()
		query := fmt.Sprintf(`SELECT `+noteColumns+` FROM notes%s ORDER BY notes.created_at DESC LIMIT $%d`,
			c.WhereClause(), len(c.Args)+1)
		notes, err = queryNotes(gCtx, conn, query, append(append([]any{}, c.Args...), c.Limit)...)
		return err
	})
	g.Go(func() error {
		conn, err := s.pool.Acquire(gCtx)
		if err != nil {
			return err
		}
		defer conn.Release()
		return conn.QueryRow(gCtx, `SELECT COUNT(*) FROM notes`+c.WhereClause(), c.Args...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Persistence("filter notes", err)
	}

	return &store.FilterResult{Notes: notes, TotalCount: total, AppliedFilters: c.Applied}, nil
}

// GetFilterOptions returns the distinct, trimmed, sorted values currently
// in use for contexts, tags, note types, and statuses.
func (s *Store) GetFilterOptions(ctx context.Context) (*store.FilterOptions, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	collect := func(query string) ([]string, error) {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var v *string
			if err := rows.Scan(&v); err != nil {
				return nil, err
			}
			if v != nil {
				out = append(out, *v)
			}
		}
		return out, rows.Err()
	}

	opts := &store.FilterOptions{}
	steps := []struct {
		query string
		dst   *[]string
	}{
		{`SELECT c.name FROM contexts c JOIN notes_contexts nc ON nc.context_id = c.id UNION SELECT key_context FROM notes`, &opts.Contexts},
		{`SELECT unnest(tags) FROM notes`, &opts.Tags},
		{`SELECT note_type FROM notes WHERE note_type IS NOT NULL`, &opts.NoteTypes},
		{`SELECT status FROM notes WHERE status IS NOT NULL`, &opts.Statuses},
	}
	for _, step := range steps {
		values, err := collect(step.query)
		if err != nil {
			return nil, apperr.Persistence("collect filter options", err)
		}
		*step.dst = store.NormalizeOptions(values)
	}
	return opts, nil
}

// SemanticSearch delegates to the match_notes server-side function through
// the shared executor.
func (s *Store) SemanticSearch(ctx context.Context, vector []float32, threshold float64, limit int) ([]models.SearchResultNote, error) {
	return store.ExecuteSemanticSearch(ctx, s.similarityRows, vector, threshold, limit)
}

func (s *Store) similarityRows(ctx context.Context, vector []float32, threshold float64, limit int) ([]store.RawSearchRow, error) {
	if len(vector) != s.dim {
		return nil, apperr.Validationf("query vector has %d dimensions, index expects %d", len(vector), s.dim)
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, apperr.Persistence("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT * FROM match_notes($1, $2, $3)`,
		pgvector.NewVector(vector), threshold, limit)
	if err != nil {
		return nil, apperr.Persistence("match_notes", err)
	}
	defer rows.Close()

	var out []store.RawSearchRow
	for rows.Next() {
		var r store.RawSearchRow
		var keyContext, noteType *string
		var contexts, tags []string
		err := rows.Scan(&r.ID, &r.Content, &keyContext, &contexts, &tags,
			&noteType, &r.CreatedAt, &r.UpdatedAt, &r.Similarity)
		if err != nil {
			return nil, apperr.Persistence("scan search row", err)
		}
		r.KeyContext = keyContext
		r.Contexts = contexts
		r.Tags = tags
		r.NoteType = noteType
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("match_notes", err)
	}
	return out, nil
}

// getNote loads a single note with its contexts resolved.
func (s *Store) getNote(ctx context.Context, conn querier, id string) (*models.Note, error) {
	notes, err := queryNotes(ctx, conn, `SELECT `+noteColumns+` FROM notes WHERE notes.id = $1`, id)
	if err != nil {
		return nil, apperr.Persistence("load note", err)
	}
	if len(notes) == 0 {
		return nil, apperr.NotFoundf("note %s", id)
	}
	return &notes[0], nil
}

// querier is satisfied by pgxpool.Conn and pgx.Tx alike.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryNotes(ctx context.Context, q querier, query string, args ...any) ([]models.Note, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachContexts(ctx, q, notes)
}

func scanNote(rows pgx.Rows) (*models.Note, error) {
	var n models.Note
	var noteType, embModel, status *string
	var emb *pgvector.Vector
	var embAt, deadline *time.Time

	err := rows.Scan(&n.ID, &n.Content, &n.KeyContext, &n.Tags, &noteType,
		&emb, &embModel, &embAt, &deadline, &status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if n.Tags == nil {
		n.Tags = []string{}
	}
	if noteType != nil {
		t := models.NoteType(*noteType)
		n.NoteType = &t
	}
	if status != nil {
		st := models.NoteStatus(*status)
		n.Status = &st
	}
	if emb != nil {
		n.Embedding = emb.Slice()
	}
	if embModel != nil {
		n.EmbeddingModel = *embModel
	}
	n.EmbeddingCreatedAt = embAt
	n.Deadline = deadline
	n.Contexts = []string{}
	return &n, nil
}

func attachContexts(ctx context.Context, q querier, notes []models.Note) ([]models.Note, error) {
	if len(notes) == 0 {
		return notes, nil
	}
	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}

	rows, err := q.Query(ctx, `
		SELECT nc.note_id, c.name
		FROM notes_contexts nc
		JOIN contexts c ON c.id = nc.context_id
		WHERE nc.note_id = ANY($1)
		ORDER BY c.name
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byNote := make(map[string][]string, len(notes))
	for rows.Next() {
		var noteID, name string
		if err := rows.Scan(&noteID, &name); err != nil {
			return nil, err
		}
		byNote[noteID] = append(byNote[noteID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range notes {
		if names, ok := byNote[notes[i].ID]; ok {
			notes[i].Contexts = names
		}
	}
	return notes, nil
}

// linkContexts upserts a context row per name and inserts the edges.
func linkContexts(ctx context.Context, tx pgx.Tx, noteID string, names []string, now time.Time) error {
	for _, name := range names {
		var contextID string
		err := tx.QueryRow(ctx, `
			INSERT INTO contexts (id, name, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (name) DO UPDATE SET updated_at = EXCLUDED.updated_at
			RETURNING id
		`, uuid.NewString(), name, now).Scan(&contextID)
		if err != nil {
			return apperr.Persistence(fmt.Sprintf("upsert context %q", name), err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO notes_contexts (note_id, context_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (note_id, context_id) DO NOTHING
		`, noteID, contextID, now)
		if err != nil {
			return apperr.Persistence(fmt.Sprintf("link context %q", name), err)
		}
	}
	return nil
}

func validateCreate(p store.CreateNoteParams) error {
	if p.ID == "" {
		return apperr.Validationf("note id is required")
	}
	if p.Content == "" {
		return apperr.Validationf("note content is required")
	}
	if p.KeyContext == "" {
		return apperr.Validationf("key context is required")
	}
	if p.NoteType != nil && !p.NoteType.Valid() {
		return apperr.Validationf("unknown note type %q", *p.NoteType)
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validationf("unknown status %q", *p.Status)
	}
	return nil
}

func validatePatch(p store.NotePatch) error {
	if p.NoteType != nil && !p.NoteType.Valid() {
		return apperr.Validationf("unknown note type %q", *p.NoteType)
	}
	if p.Status != nil && !p.Status.Valid() {
		return apperr.Validationf("unknown status %q", *p.Status)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func enumPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
