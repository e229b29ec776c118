package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Persistence("begin create note", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	tagsJSON, _ := json.Marshal(nonNil(p.Tags))

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, content, key_context, tags, note_type, deadline, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Content, p.KeyContext, string(tagsJSON), nullableEnum(p.NoteType), nullableTime(p.Deadline), nullableEnum(p.Status), now, now)
	if err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("insert note %s", p.ID), err)
	}

	if err := linkContexts(ctx, tx, p.ID, store.LinkSet(p.KeyContext, p.Contexts), now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Persistence("commit create note", err)
	}
	return s.getNote(ctx, p.ID)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Persistence("begin update note", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	sets := []string{"updated_at = ?"}
	args := []any{now}

	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.KeyContext != nil {
		sets = append(sets, "key_context = ?")
		args = append(args, *patch.KeyContext)
	}
	if patch.Tags != nil {
		tagsJSON, _ := json.Marshal(nonNil(*patch.Tags))
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if patch.NoteType != nil {
		sets = append(sets, "note_type = ?")
		args = append(args, string(*patch.NoteType))
	}
	if patch.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, *patch.Deadline)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Embedding != nil {
		embJSON, _ := json.Marshal(patch.Embedding)
		sets = append(sets, "embedding = ?", "embedding_model = ?", "embedding_created_at = ?")
		args = append(args, string(embJSON), patch.EmbeddingModel, now)
	}

	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, apperr.Persistence(fmt.Sprintf("update note %s", id), err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, apperr.NotFoundf("note %s", id)
	}

	if patch.Contexts != nil {
		keyContext, err := noteKeyContext(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes_contexts WHERE note_id = ?`, id); err != nil {
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

	if patch.Embedding != nil && s.vecAvailable {
		if err := s.syncVec(ctx, tx, id, patch.Embedding); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Persistence("commit update note", err)
	}
	return s.getNote(ctx, id)
}

// DeleteNote removes the note's edges first, then the note row. A missing
// id is not an error.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Persistence("begin delete note", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if s.vecAvailable {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes_vec WHERE rowid = (SELECT rowid FROM notes WHERE id = ?)`, id); err != nil {
			return apperr.Persistence("delete note vector", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes_contexts WHERE note_id = ?`, id); err != nil {
		return apperr.Persistence("delete note edges", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return apperr.Persistence("delete note", err)
	}
	if err := tx.Commit(); err != nil {
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
		preds = append(preds, "notes.key_context = ?")
		args = append(args, p.KeyContext)
	}
	if len(p.Contexts) > 0 {
		if p.Method == store.MethodAND {
			for _, name := range p.Contexts {
				preds = append(preds,
					"notes.id IN (SELECT nc.note_id FROM notes_contexts nc JOIN contexts c ON c.id = nc.context_id WHERE c.name = ?)")
				args = append(args, name)
			}
		} else {
			preds = append(preds, fmt.Sprintf(
				"notes.id IN (SELECT nc.note_id FROM notes_contexts nc JOIN contexts c ON c.id = nc.context_id WHERE c.name IN (%s))",
				placeholders(len(p.Contexts))))
			for _, name := range p.Contexts {
				args = append(args, name)
			}
		}
	}

	joiner := " OR "
	if p.Method == store.MethodAND {
		joiner = " AND "
	}
	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + strings.Join(preds, joiner) + ` ORDER BY notes.created_at DESC`

	notes, err := s.queryNotes(ctx, query, args...)
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
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT `+noteColumns+` FROM notes WHERE notes.id IN (%s)`, placeholders(len(ids)))
	notes, err := s.queryNotes(ctx, query, args...)
	if err != nil {
		return nil, apperr.Persistence("fetch notes by ids", err)
	}
	return notes, nil
}

// FilterNotes compiles the filter and runs the page query and the
// unlimited count query in parallel.
func (s *Store) FilterNotes(ctx context.Context, f *store.NoteFilter) (*store.FilterResult, error) {
	c := store.CompileFilter(f, dialect{})

	var notes []models.Note
	var total int

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		query := `SELECT ` + noteColumns + ` FROM notes` + c.WhereClause() + ` ORDER BY notes.created_at DESC LIMIT ?`
		var err error
		notes, err = s.queryNotes(gCtx, query, append(append([]any{}, c.Args...), c.Limit)...)
		return err
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gCtx, `SELECT COUNT(*) FROM notes`+c.WhereClause(), c.Args...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Persistence("filter notes", err)
	}

	return &store.FilterResult{Notes: notes, TotalCount: total, AppliedFilters: c.Applied}, nil
}

// GetFilterOptions returns the distinct, trimmed, sorted values currently
// in use for contexts, tags, note types, and statuses.
func (s *Store) GetFilterOptions(ctx context.Context) (*store.FilterOptions, error) {
	queries := map[string]string{
		"contexts":  `SELECT c.name FROM contexts c JOIN notes_contexts nc ON nc.context_id = c.id UNION SELECT key_context FROM notes`,
		"tags":      `SELECT json_each.value FROM notes, json_each(notes.tags)`,
		"noteTypes": `SELECT note_type FROM notes WHERE note_type IS NOT NULL`,
		"statuses":  `SELECT status FROM notes WHERE status IS NOT NULL`,
	}

	collect := func(query string) ([]string, error) {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var v sql.NullString
			if err := rows.Scan(&v); err != nil {
				return nil, err
			}
			if v.Valid {
				out = append(out, v.String)
			}
		}
		return out, rows.Err()
	}

	opts := &store.FilterOptions{}
	for name, query := range queries {
		values, err := collect(query)
		if err != nil {
			return nil, apperr.Persistence("collect filter options: "+name, err)
		}
		normalized := store.NormalizeOptions(values)
		switch name {
		case "contexts":
			opts.Contexts = normalized
		case "tags":
			opts.Tags = normalized
		case "noteTypes":
			opts.NoteTypes = normalized
		case "statuses":
			opts.Statuses = normalized
		}
	}
	return opts, nil
}

// getNote loads a single note with its contexts resolved.
func (s *Store) getNote(ctx context.Context, id string) (*models.Note, error) {
	notes, err := s.queryNotes(ctx, `SELECT `+noteColumns+` FROM notes WHERE notes.id = ?`, id)
	if err != nil {
		return nil, apperr.Persistence("load note", err)
	}
	if len(notes) == 0 {
		return nil, apperr.NotFoundf("note %s", id)
	}
	return &notes[0], nil
}

// queryNotes runs a SELECT over noteColumns and attaches the linked
// context names in one follow-up query.
func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
	return s.attachContexts(ctx, notes)
}

func scanNote(rows *sql.Rows) (*models.Note, error) {
	var n models.Note
	var tagsJSON string
	var noteType, embJSON, embModel, status sql.NullString
	var embAt, deadline sql.NullTime

	err := rows.Scan(&n.ID, &n.Content, &n.KeyContext, &tagsJSON, &noteType,
		&embJSON, &embModel, &embAt, &deadline, &status, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil || n.Tags == nil {
		n.Tags = []string{}
	}
	if noteType.Valid {
		t := models.NoteType(noteType.String)
		n.NoteType = &t
	}
	if status.Valid {
		st := models.NoteStatus(status.String)
		n.Status = &st
	}
	if embJSON.Valid {
		_ = json.Unmarshal([]byte(embJSON.String), &n.Embedding)
	}
	if embModel.Valid {
		n.EmbeddingModel = embModel.String
	}
	if embAt.Valid {
		t := embAt.Time
		n.EmbeddingCreatedAt = &t
	}
	if deadline.Valid {
		d := deadline.Time
		n.Deadline = &d
	}
	n.Contexts = []string{}
	return &n, nil
}

func (s *Store) attachContexts(ctx context.Context, notes []models.Note) ([]models.Note, error) {
	if len(notes) == 0 {
		return notes, nil
	}
	args := make([]any, len(notes))
	for i, n := range notes {
		args[i] = n.ID
	}
	query := fmt.Sprintf(`
		SELECT nc.note_id, c.name
		FROM notes_contexts nc
		JOIN contexts c ON c.id = nc.context_id
		WHERE nc.note_id IN (%s)
		ORDER BY c.name
	`, placeholders(len(notes)))

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func linkContexts(ctx context.Context, tx *sql.Tx, noteID string, names []string, now time.Time) error {
	for _, name := range names {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contexts (id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at
		`, uuid.NewString(), name, now, now)
		if err != nil {
			return apperr.Persistence(fmt.Sprintf("upsert context %q", name), err)
		}

		var contextID string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM contexts WHERE name = ?`, name).Scan(&contextID); err != nil {
			return apperr.Persistence(fmt.Sprintf("resolve context %q", name), err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO notes_contexts (note_id, context_id, created_at) VALUES (?, ?, ?)
		`, noteID, contextID, now)
		if err != nil {
			return apperr.Persistence(fmt.Sprintf("link context %q", name), err)
		}
	}
	return nil
}

func noteKeyContext(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var keyContext string
	err := tx.QueryRowContext(ctx, `SELECT key_context FROM notes WHERE id = ?`, id).Scan(&keyContext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFoundf("note %s", id)
	}
	if err != nil {
		return "", apperr.Persistence("load note key context", err)
	}
	return keyContext, nil
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

func nullableEnum[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
