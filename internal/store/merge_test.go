package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// fakeMergeTx is an in-memory MergeTx with optional failure injection.
type fakeMergeTx struct {
	contexts map[string]*models.Context // name -> context
	edges    map[string][]string        // context id -> note ids
	notes    map[string]*NoteContent    // note id -> content slice

	failOnRewrite bool

	renamed  map[string]string // context id -> new name
	deleted  []string          // deleted context ids
	rewrites int
}

func newFakeMergeTx() *fakeMergeTx {
	return &fakeMergeTx{
		contexts: map[string]*models.Context{},
		edges:    map[string][]string{},
		notes:    map[string]*NoteContent{},
		renamed:  map[string]string{},
	}
}

func (f *fakeMergeTx) addContext(id, name string) {
	f.contexts[name] = &models.Context{ID: id, Name: name}
}

func (f *fakeMergeTx) addNote(id, content, keyContext string, contextIDs ...string) {
	f.notes[id] = &NoteContent{ID: id, Content: content, KeyContext: keyContext}
	for _, cid := range contextIDs {
		f.edges[cid] = append(f.edges[cid], id)
	}
}

func (f *fakeMergeTx) ContextByName(_ context.Context, name string) (*models.Context, error) {
	c, ok := f.contexts[name]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

func (f *fakeMergeTx) RenameContextRow(_ context.Context, id, newName string) error {
	f.renamed[id] = newName
	return nil
}

func (f *fakeMergeTx) DeleteContextRow(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMergeTx) NoteIDsByContext(_ context.Context, contextID string) ([]string, error) {
	return append([]string(nil), f.edges[contextID]...), nil
}

func (f *fakeMergeTx) DeleteEdges(_ context.Context, contextID string, noteIDs []string) error {
	drop := map[string]struct{}{}
	for _, id := range noteIDs {
		drop[id] = struct{}{}
	}
	var kept []string
	for _, id := range f.edges[contextID] {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	f.edges[contextID] = kept
	return nil
}

func (f *fakeMergeTx) MoveEdges(_ context.Context, fromID, toID string, noteIDs []string) error {
	if err := f.DeleteEdges(context.Background(), fromID, noteIDs); err != nil {
		return err
	}
	f.edges[toID] = append(f.edges[toID], noteIDs...)
	return nil
}

func (f *fakeMergeTx) NotesContent(_ context.Context, noteIDs []string) ([]NoteContent, error) {
	var out []NoteContent
	for _, id := range noteIDs {
		if n, ok := f.notes[id]; ok {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeMergeTx) UpdateNoteContent(_ context.Context, noteID, content, keyContext string) error {
	if f.failOnRewrite {
		return errors.New("forced rewrite failure")
	}
	f.notes[noteID] = &NoteContent{ID: noteID, Content: content, KeyContext: keyContext}
	f.rewrites++
	return nil
}

func TestRunRenameValidation(t *testing.T) {
	tx := newFakeMergeTx()
	if _, err := RunRename(context.Background(), tx, "", "b"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty old name: err = %v", err)
	}
	if _, err := RunRename(context.Background(), tx, "a", "a"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("identical names: err = %v", err)
	}
}

func TestRunRenameMissingOldContext(t *testing.T) {
	tx := newFakeMergeTx()
	_, err := RunRename(context.Background(), tx, "ghost", "real")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(tx.renamed) != 0 || len(tx.deleted) != 0 || tx.rewrites != 0 {
		t.Error("writes issued before resolving the old context")
	}
}

func TestRunRenamePath(t *testing.T) {
	tx := newFakeMergeTx()
	tx.addContext("c1", "work")
	tx.addNote("n1", "today at [[Work]]", "work", "c1")
	tx.addNote("n2", "unrelated", "home", "c1")

	res, err := RunRename(context.Background(), tx, "work", "office")
	if err != nil {
		t.Fatalf("RunRename: %v", err)
	}
	if res.Merged {
		t.Error("rename reported as merge")
	}
	if tx.renamed["c1"] != "office" {
		t.Errorf("context row not renamed: %v", tx.renamed)
	}
	if got := tx.notes["n1"].Content; got != "today at [[Office]]" {
		t.Errorf("n1 content = %q", got)
	}
	if got := tx.notes["n1"].KeyContext; got != "office" {
		t.Errorf("n1 key context = %q", got)
	}
	// n2 carries neither a matching reference nor the key context; it must
	// not be touched.
	if res.NotesUpdated != 1 {
		t.Errorf("NotesUpdated = %d, want 1", res.NotesUpdated)
	}
}

func TestRunRenameMergeDedup(t *testing.T) {
	tx := newFakeMergeTx()
	tx.addContext("cA", "alpha")
	tx.addContext("cB", "beta")
	tx.addNote("n1", "[[Alpha]] only", "alpha", "cA")
	tx.addNote("n2", "[[Beta]] only", "beta", "cB")
	tx.addNote("n3", "[[Alpha]] and [[Beta]]", "alpha", "cA", "cB")

	res, err := RunRename(context.Background(), tx, "alpha", "beta")
	if err != nil {
		t.Fatalf("RunRename: %v", err)
	}
	if !res.Merged {
		t.Error("merge not reported")
	}

	if len(tx.edges["cA"]) != 0 {
		t.Errorf("old context still has edges: %v", tx.edges["cA"])
	}
	got := append([]string(nil), tx.edges["cB"]...)
	sort.Strings(got)
	want := []string{"n1", "n2", "n3"}
	if len(got) != len(want) {
		t.Fatalf("new context edges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("new context edges = %v, want %v", got, want)
		}
	}

	if tx.notes["n1"].Content != "[[Beta]] only" {
		t.Errorf("n1 content = %q", tx.notes["n1"].Content)
	}
	if tx.notes["n3"].Content != "[[Beta]] and [[Beta]]" {
		t.Errorf("n3 content = %q", tx.notes["n3"].Content)
	}
	if tx.notes["n3"].KeyContext != "beta" {
		t.Errorf("n3 key context = %q", tx.notes["n3"].KeyContext)
	}

	if len(tx.deleted) != 1 || tx.deleted[0] != "cA" {
		t.Errorf("orphaned context not deleted: %v", tx.deleted)
	}
}

func TestRunRenameRewriteFailurePropagates(t *testing.T) {
	tx := newFakeMergeTx()
	tx.addContext("c1", "work")
	tx.addNote("n1", "at [[Work]]", "work", "c1")
	tx.failOnRewrite = true

	_, err := RunRename(context.Background(), tx, "work", "office")
	if err == nil {
		t.Fatal("expected the forced rewrite failure to propagate")
	}
	// The adapter rolls the transaction back on this error; the engine's
	// contract is just to surface it with the cause intact.
	if !strings.Contains(err.Error(), "forced rewrite failure") {
		t.Errorf("cause lost: %v", err)
	}
}
