package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/refs"
)

// MergeTx is the set of transaction-bound primitives the rename/merge
// engine needs from a backend. Every method runs inside the transaction
// the adapter opened for the rename; the engine itself never commits or
// rolls back.
type MergeTx interface {
	// ContextByName resolves a context, returning apperr.ErrNotFound when
	// the name is absent.
	ContextByName(ctx context.Context, name string) (*models.Context, error)
	// RenameContextRow updates a context row's name in place.
	RenameContextRow(ctx context.Context, id, newName string) error
	// DeleteContextRow removes a context row.
	DeleteContextRow(ctx context.Context, id string) error
	// NoteIDsByContext lists the note ids linked to a context.
	NoteIDsByContext(ctx context.Context, contextID string) ([]string, error)
	// DeleteEdges removes the (noteID, contextID) edges for the listed notes.
	DeleteEdges(ctx context.Context, contextID string, noteIDs []string) error
	// MoveEdges repoints the listed notes' edges from one context to another.
	MoveEdges(ctx context.Context, fromID, toID string, noteIDs []string) error
	// NotesContent fetches id, content, and key_context for the listed notes.
	NotesContent(ctx context.Context, noteIDs []string) ([]NoteContent, error)
	// UpdateNoteContent rewrites a note's content and key_context.
	UpdateNoteContent(ctx context.Context, noteID, content, keyContext string) error
}

// NoteContent is the slice of a note the merge engine rewrites.
type NoteContent struct {
	ID         string
	Content    string
	KeyContext string
}

// RunRename executes the context rename/merge state machine against the
// given transaction-bound primitives. When newName does not exist the
// context row is renamed in place; when it does, oldName's edges are
// deduplicated and migrated onto it and the orphaned row is deleted.
// Either way, affected notes have inline [[references]] and key_context
// rewritten. The caller owns the enclosing transaction: on error it must
// roll back so no partial relinking is ever observed.
func RunRename(ctx context.Context, tx MergeTx, oldName, newName string) (*RenameResult, error) {
	if oldName == "" || newName == "" {
		return nil, apperr.Validationf("old and new context names are required")
	}
	if oldName == newName {
		return nil, apperr.Validationf("old and new context names are identical")
	}

	oldCtx, err := tx.ContextByName(ctx, oldName)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFoundf("context %q", oldName)
		}
		return nil, fmt.Errorf("resolve context %q: %w", oldName, err)
	}

	newCtx, err := tx.ContextByName(ctx, newName)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("resolve context %q: %w", newName, err)
	}

	res := &RenameResult{OldName: oldName, NewName: newName}

	if newCtx == nil || errors.Is(err, apperr.ErrNotFound) {
		// Rename path: update the row in place, then rewrite references.
		if err := tx.RenameContextRow(ctx, oldCtx.ID, newName); err != nil {
			return nil, fmt.Errorf("rename context row: %w", err)
		}
		noteIDs, err := tx.NoteIDsByContext(ctx, oldCtx.ID)
		if err != nil {
			return nil, fmt.Errorf("list linked notes: %w", err)
		}
		updated, err := rewriteNotes(ctx, tx, noteIDs, oldName, newName)
		if err != nil {
			return nil, err
		}
		res.NotesUpdated = updated
		return res, nil
	}

	// Merge path: newName already exists.
	res.Merged = true

	oldIDs, err := tx.NoteIDsByContext(ctx, oldCtx.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes for %q: %w", oldName, err)
	}
	newIDs, err := tx.NoteIDsByContext(ctx, newCtx.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes for %q: %w", newName, err)
	}

	alreadyLinked := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		alreadyLinked[id] = struct{}{}
	}

	var duplicates, migratable []string
	for _, id := range oldIDs {
		if _, ok := alreadyLinked[id]; ok {
			duplicates = append(duplicates, id)
		} else {
			migratable = append(migratable, id)
		}
	}

	// Drop duplicate edges first so moving the rest cannot violate the
	// (note_id, context_id) uniqueness.
	if len(duplicates) > 0 {
		if err := tx.DeleteEdges(ctx, oldCtx.ID, duplicates); err != nil {
			return nil, fmt.Errorf("delete duplicate edges: %w", err)
		}
	}
	if len(migratable) > 0 {
		if err := tx.MoveEdges(ctx, oldCtx.ID, newCtx.ID, migratable); err != nil {
			return nil, fmt.Errorf("move edges: %w", err)
		}
	}

	updated, err := rewriteNotes(ctx, tx, oldIDs, oldName, newName)
	if err != nil {
		return nil, err
	}
	res.NotesUpdated = updated

	if err := tx.DeleteContextRow(ctx, oldCtx.ID); err != nil {
		return nil, fmt.Errorf("delete orphaned context row: %w", err)
	}
	return res, nil
}

// rewriteNotes rewrites inline references and key_context on the listed
// notes, issuing an update only when something actually changed.
func rewriteNotes(ctx context.Context, tx MergeTx, noteIDs []string, oldName, newName string) (int, error) {
	if len(noteIDs) == 0 {
		return 0, nil
	}
	notes, err := tx.NotesContent(ctx, noteIDs)
	if err != nil {
		return 0, fmt.Errorf("fetch note content: %w", err)
	}
	var updated int
	for _, n := range notes {
		content, changed := refs.Rewrite(n.Content, oldName, newName)
		keyContext := n.KeyContext
		if keyContext == oldName {
			keyContext = newName
			changed = true
		}
		if !changed {
			continue
		}
		if err := tx.UpdateNoteContent(ctx, n.ID, content, keyContext); err != nil {
			return updated, fmt.Errorf("rewrite note %s: %w", n.ID, err)
		}
		updated++
	}
	return updated, nil
}
