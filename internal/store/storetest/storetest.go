// Package storetest holds a backend-agnostic conformance suite for the
// store.Adapter contract. Each adapter package runs the same suite against
// its own backend so behavior cannot drift between them.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/embedding"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
)

// Dim is the embedding dimension every conformance adapter must be
// configured with. Small on purpose so test vectors stay readable.
const Dim = 3

// Factory builds a fresh, empty adapter for one subtest. Cleanup must be
// registered on t by the factory itself.
type Factory func(t *testing.T) store.Adapter

// Run exercises the full adapter contract against the given backend.
func Run(t *testing.T, newAdapter Factory) {
	t.Helper()

	t.Run("CreateNote", func(t *testing.T) { testCreateNote(t, newAdapter) })
	t.Run("UpdateNote", func(t *testing.T) { testUpdateNote(t, newAdapter) })
	t.Run("DeleteNote", func(t *testing.T) { testDeleteNote(t, newAdapter) })
	t.Run("FetchNotes", func(t *testing.T) { testFetchNotes(t, newAdapter) })
	t.Run("FetchNotesByIDs", func(t *testing.T) { testFetchNotesByIDs(t, newAdapter) })
	t.Run("FilterNotes", func(t *testing.T) { testFilterNotes(t, newAdapter) })
	t.Run("FilterOptions", func(t *testing.T) { testFilterOptions(t, newAdapter) })
	t.Run("ContextStats", func(t *testing.T) { testContextStats(t, newAdapter) })
	t.Run("SearchContexts", func(t *testing.T) { testSearchContexts(t, newAdapter) })
	t.Run("SemanticSearch", func(t *testing.T) { testSemanticSearch(t, newAdapter) })
	t.Run("RenameContext", func(t *testing.T) { testRenameContext(t, newAdapter) })
}

func mustCreate(t *testing.T, s store.Adapter, p store.CreateNoteParams) *models.Note {
	t.Helper()
	n, err := s.CreateNote(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateNote(%s) failed: %v", p.ID, err)
	}
	return n
}

func noteIDs(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func hasString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func testCreateNote(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	taskType := models.NoteTypeTask
	status := models.StatusTodo
	n := mustCreate(t, s, store.CreateNoteParams{
		ID:         "n1",
		Content:    "ship the release",
		KeyContext: "Work",
		Contexts:   []string{"Releases", "Work"},
		Tags:       []string{"urgent"},
		NoteType:   &taskType,
		Status:     &status,
	})

	if n.KeyContext != "Work" {
		t.Errorf("key context = %q, want Work", n.KeyContext)
	}
	// The key context is edge-linked too, and the duplicate mention of
	// Work collapses to a single edge.
	if len(n.Contexts) != 2 {
		t.Errorf("contexts = %v, want exactly [Releases Work] in some order", n.Contexts)
	}
	if !hasString(n.Contexts, "Work") || !hasString(n.Contexts, "Releases") {
		t.Errorf("contexts = %v, missing Work or Releases", n.Contexts)
	}
	if n.NoteType == nil || *n.NoteType != models.NoteTypeTask {
		t.Errorf("note type = %v, want task", n.NoteType)
	}
	if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
		t.Error("timestamps were not stamped")
	}

	// Contexts are created implicitly.
	if !s.ContextExists(ctx, "Releases") {
		t.Error("context Releases was not created implicitly")
	}

	// Duplicate id is a persistence failure.
	_, err := s.CreateNote(ctx, store.CreateNoteParams{ID: "n1", Content: "dup", KeyContext: "Work"})
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("duplicate id error = %v, want ErrPersistence", err)
	}

	// Missing required fields fail validation before any write.
	_, err = s.CreateNote(ctx, store.CreateNoteParams{ID: "n2", Content: "", KeyContext: "Work"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty content error = %v, want ErrValidation", err)
	}
	_, err = s.CreateNote(ctx, store.CreateNoteParams{ID: "n3", Content: "x", KeyContext: ""})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty key context error = %v, want ErrValidation", err)
	}
}

func testUpdateNote(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	mustCreate(t, s, store.CreateNoteParams{
		ID: "n1", Content: "draft", KeyContext: "Work", Contexts: []string{"Ideas"},
	})

	_, err := s.UpdateNote(ctx, "n1", store.NotePatch{})
	if !errors.Is(err, apperr.ErrNoOp) {
		t.Errorf("empty patch error = %v, want ErrNoOp", err)
	}

	content := "final"
	_, err = s.UpdateNote(ctx, "missing", store.NotePatch{Content: &content})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing note error = %v, want ErrNotFound", err)
	}

	n, err := s.UpdateNote(ctx, "n1", store.NotePatch{Content: &content})
	if err != nil {
		t.Fatalf("content update failed: %v", err)
	}
	if n.Content != "final" {
		t.Errorf("content = %q, want final", n.Content)
	}
	if !hasString(n.Contexts, "Ideas") {
		t.Errorf("content-only patch dropped contexts: %v", n.Contexts)
	}

	// A present Contexts field fully replaces the edges; the key context
	// stays linked.
	newContexts := []string{"Planning"}
	n, err = s.UpdateNote(ctx, "n1", store.NotePatch{Contexts: &newContexts})
	if err != nil {
		t.Fatalf("contexts update failed: %v", err)
	}
	if hasString(n.Contexts, "Ideas") {
		t.Errorf("contexts = %v, Ideas should have been unlinked", n.Contexts)
	}
	if !hasString(n.Contexts, "Planning") || !hasString(n.Contexts, "Work") {
		t.Errorf("contexts = %v, want Planning and key context Work", n.Contexts)
	}

	// A key-context-only patch links the new context, so it shows up in
	// stats and renames like any other.
	freshKey := "Fresh"
	n, err = s.UpdateNote(ctx, "n1", store.NotePatch{KeyContext: &freshKey})
	if err != nil {
		t.Fatalf("key context update failed: %v", err)
	}
	if n.KeyContext != "Fresh" {
		t.Errorf("key context = %q, want Fresh", n.KeyContext)
	}
	if !hasString(n.Contexts, "Fresh") {
		t.Errorf("contexts = %v, patched key context was not linked", n.Contexts)
	}
	if !s.ContextExists(ctx, "Fresh") {
		t.Error("patched key context was not created")
	}
	res, err := s.RenameContext(ctx, "Fresh", "Fresher")
	if err != nil {
		t.Fatalf("renaming the patched key context failed: %v", err)
	}
	if res.NotesUpdated != 1 {
		t.Errorf("rename touched %d notes, want 1", res.NotesUpdated)
	}

	// Embedding patches stamp the model and generation time.
	n, err = s.UpdateNote(ctx, "n1", store.NotePatch{
		Embedding:      []float32{1, 0, 0},
		EmbeddingModel: "test-embed-1",
	})
	if err != nil {
		t.Fatalf("embedding update failed: %v", err)
	}
	if n.EmbeddingModel != "test-embed-1" {
		t.Errorf("embedding model = %q, want test-embed-1", n.EmbeddingModel)
	}
	if n.EmbeddingCreatedAt == nil {
		t.Error("embedding created at was not stamped")
	}
}

func testDeleteNote(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	mustCreate(t, s, store.CreateNoteParams{
		ID: "n1", Content: "a", KeyContext: "Work", Contexts: []string{"Shared"},
	})
	mustCreate(t, s, store.CreateNoteParams{
		ID: "n2", Content: "b", KeyContext: "Work", Contexts: []string{"Shared"},
	})

	if err := s.DeleteNote(ctx, "n1"); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if err := s.DeleteNote(ctx, "n1"); err != nil {
		t.Errorf("deleting an already-deleted id errored: %v", err)
	}

	notes, err := s.FetchNotesByIDs(ctx, []string{"n1", "n2"})
	if err != nil {
		t.Fatalf("FetchNotesByIDs failed: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != "n2" {
		t.Errorf("surviving notes = %v, want just n2", noteIDs(notes))
	}

	// The edge cleanup shows up in the usage stats.
	page, err := s.FetchContextStats(ctx, 10, 0)
	if err != nil {
		t.Fatalf("FetchContextStats failed: %v", err)
	}
	for _, st := range page.Contexts {
		if st.Name == "Shared" && st.Count != 1 {
			t.Errorf("Shared count after delete = %d, want 1", st.Count)
		}
	}
}

func testFetchNotes(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	mustCreate(t, s, store.CreateNoteParams{
		ID: "n1", Content: "a", KeyContext: "Work", Contexts: []string{"Go", "Infra"},
	})
	mustCreate(t, s, store.CreateNoteParams{
		ID: "n2", Content: "b", KeyContext: "Home", Contexts: []string{"Go"},
	})
	mustCreate(t, s, store.CreateNoteParams{
		ID: "n3", Content: "c", KeyContext: "Home", Contexts: []string{"Infra"},
	})

	_, err := s.FetchNotes(ctx, store.FetchParams{})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty params error = %v, want ErrValidation", err)
	}

	notes, err := s.FetchNotes(ctx, store.FetchParams{KeyContext: "Home"})
	if err != nil {
		t.Fatalf("fetch by key context failed: %v", err)
	}
	if len(notes) != 2 {
		t.Errorf("key context Home returned %v, want n2 and n3", noteIDs(notes))
	}

	// OR is the default combination.
	notes, err = s.FetchNotes(ctx, store.FetchParams{Contexts: []string{"Go", "Infra"}})
	if err != nil {
		t.Fatalf("fetch OR failed: %v", err)
	}
	if len(notes) != 3 {
		t.Errorf("OR over Go,Infra returned %v, want all three", noteIDs(notes))
	}

	notes, err = s.FetchNotes(ctx, store.FetchParams{
		Contexts: []string{"Go", "Infra"}, Method: store.MethodAND,
	})
	if err != nil {
		t.Fatalf("fetch AND failed: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != "n1" {
		t.Errorf("AND over Go,Infra returned %v, want just n1", noteIDs(notes))
	}

	// Unknown context names simply match nothing.
	notes, err = s.FetchNotes(ctx, store.FetchParams{Contexts: []string{"Nope"}})
	if err != nil {
		t.Fatalf("fetch unknown context failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("unknown context returned %v, want none", noteIDs(notes))
	}
}

func testFetchNotesByIDs(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	mustCreate(t, s, store.CreateNoteParams{ID: "n1", Content: "a", KeyContext: "Work"})

	notes, err := s.FetchNotesByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("empty input failed: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("empty input returned %v, want none", noteIDs(notes))
	}

	notes, err = s.FetchNotesByIDs(ctx, []string{"n1", "missing"})
	if err != nil {
		t.Fatalf("FetchNotesByIDs failed: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != "n1" {
		t.Errorf("returned %v, want just n1", noteIDs(notes))
	}
}

func testFilterNotes(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	taskType := models.NoteTypeTask
	done := models.StatusDone
	deadline := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	for i := 1; i <= 25; i++ {
		p := store.CreateNoteParams{
			ID:         fmt.Sprintf("n%02d", i),
			Content:    "note",
			KeyContext: "Work",
			Tags:       []string{"bulk"},
		}
		if i == 1 {
			p.Contexts = []string{"Go", "Infra"}
			p.NoteType = &taskType
			p.Status = &done
			p.Deadline = &deadline
			p.Tags = []string{"urgent", "bulk"}
		}
		mustCreate(t, s, p)
	}

	// Nil filter pages with the default limit but counts everything.
	res, err := s.FilterNotes(ctx, nil)
	if err != nil {
		t.Fatalf("nil filter failed: %v", err)
	}
	if len(res.Notes) != store.DefaultFilterLimit {
		t.Errorf("page size = %d, want %d", len(res.Notes), store.DefaultFilterLimit)
	}
	if res.TotalCount != 25 {
		t.Errorf("total count = %d, want 25", res.TotalCount)
	}
	if res.AppliedFilters.Limit != store.DefaultFilterLimit {
		t.Errorf("applied limit = %d, want %d", res.AppliedFilters.Limit, store.DefaultFilterLimit)
	}

	// Context filters are ANDed.
	res, err = s.FilterNotes(ctx, &store.NoteFilter{Contexts: []string{"Go", "Infra"}})
	if err != nil {
		t.Fatalf("context filter failed: %v", err)
	}
	if res.TotalCount != 1 || len(res.Notes) != 1 || res.Notes[0].ID != "n01" {
		t.Errorf("context filter returned %v (total %d), want just n01", noteIDs(res.Notes), res.TotalCount)
	}

	// Hashtags are ORed.
	res, err = s.FilterNotes(ctx, &store.NoteFilter{Hashtags: []string{"urgent", "absent"}})
	if err != nil {
		t.Fatalf("hashtag filter failed: %v", err)
	}
	if res.TotalCount != 1 {
		t.Errorf("hashtag filter total = %d, want 1", res.TotalCount)
	}

	res, err = s.FilterNotes(ctx, &store.NoteFilter{NoteType: &taskType})
	if err != nil {
		t.Fatalf("note type filter failed: %v", err)
	}
	if res.TotalCount != 1 {
		t.Errorf("note type filter total = %d, want 1", res.TotalCount)
	}

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	res, err = s.FilterNotes(ctx, &store.NoteFilter{DeadlineOn: &day})
	if err != nil {
		t.Fatalf("deadline filter failed: %v", err)
	}
	if res.TotalCount != 1 {
		t.Errorf("deadline filter total = %d, want 1", res.TotalCount)
	}

	// Out-of-range limits clamp instead of failing.
	res, err = s.FilterNotes(ctx, &store.NoteFilter{Limit: 100000})
	if err != nil {
		t.Fatalf("oversized limit failed: %v", err)
	}
	if res.AppliedFilters.Limit != store.MaxFilterLimit {
		t.Errorf("clamped limit = %d, want %d", res.AppliedFilters.Limit, store.MaxFilterLimit)
	}
}

func testFilterOptions(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	idea := models.NoteTypeIdea
	todo := models.StatusTodo
	mustCreate(t, s, store.CreateNoteParams{
		ID: "n1", Content: "a", KeyContext: "Work", Contexts: []string{"Go"},
		Tags: []string{"reading"}, NoteType: &idea, Status: &todo,
	})
	mustCreate(t, s, store.CreateNoteParams{
		ID: "n2", Content: "b", KeyContext: "Home", Tags: []string{"reading", "errand"},
	})

	opts, err := s.GetFilterOptions(ctx)
	if err != nil {
		t.Fatalf("GetFilterOptions failed: %v", err)
	}
	for _, want := range []string{"Go", "Home", "Work"} {
		if !hasString(opts.Contexts, want) {
			t.Errorf("contexts = %v, missing %s", opts.Contexts, want)
		}
	}
	if !hasString(opts.Tags, "errand") || !hasString(opts.Tags, "reading") {
		t.Errorf("tags = %v, want errand and reading", opts.Tags)
	}
	if len(opts.Tags) != 2 {
		t.Errorf("tags = %v, want exactly two distinct values", opts.Tags)
	}
	if !hasString(opts.NoteTypes, "idea") {
		t.Errorf("note types = %v, missing idea", opts.NoteTypes)
	}
	if !hasString(opts.Statuses, "TODO") {
		t.Errorf("statuses = %v, missing TODO", opts.Statuses)
	}
}

func testContextStats(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	// Busy gets three notes, Quiet one, Idle none.
	for i := 1; i <= 3; i++ {
		mustCreate(t, s, store.CreateNoteParams{
			ID: fmt.Sprintf("b%d", i), Content: "x", KeyContext: "Busy",
		})
	}
	mustCreate(t, s, store.CreateNoteParams{
		ID: "q1", Content: "x", KeyContext: "Quiet", Contexts: []string{"Idle"},
	})
	if err := s.DeleteNote(ctx, "q1"); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	mustCreate(t, s, store.CreateNoteParams{ID: "q2", Content: "x", KeyContext: "Quiet"})

	page, err := s.FetchContextStats(ctx, 2, 0)
	if err != nil {
		t.Fatalf("FetchContextStats failed: %v", err)
	}
	if len(page.Contexts) != 2 {
		t.Fatalf("page size = %d, want 2", len(page.Contexts))
	}
	if page.Contexts[0].Name != "Busy" || page.Contexts[0].Count != 3 {
		t.Errorf("first stat = %+v, want Busy with count 3", page.Contexts[0])
	}
	if page.Contexts[0].LastUsed == nil {
		t.Error("Busy has links but no last-used time")
	}
	if !page.HasMore {
		t.Error("hasMore = false with a third context remaining")
	}

	page, err = s.FetchContextStats(ctx, 2, 2)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(page.Contexts) != 1 || page.Contexts[0].Name != "Idle" {
		t.Fatalf("second page = %+v, want just Idle", page.Contexts)
	}
	if page.Contexts[0].Count != 0 {
		t.Errorf("Idle count = %d, want 0 after its only note was deleted", page.Contexts[0].Count)
	}
	if page.HasMore {
		t.Error("hasMore = true on the final page")
	}
}

func testSearchContexts(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	for _, name := range []string{"Go Projects", "Go Reading", "Home"} {
		mustCreate(t, s, store.CreateNoteParams{
			ID: strings.ToLower(strings.ReplaceAll(name, " ", "-")), Content: "x", KeyContext: name,
		})
	}

	got, err := s.SearchContexts(ctx, "Go", 10)
	if err != nil {
		t.Fatalf("SearchContexts failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("search Go returned %d contexts, want 2", len(got))
	}

	got, err = s.SearchContexts(ctx, "  ", 10)
	if err != nil {
		t.Fatalf("blank term failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("blank term returned %d contexts, want none", len(got))
	}

	// LIKE wildcards in the term are literals, not patterns.
	got, err = s.SearchContexts(ctx, "%", 10)
	if err != nil {
		t.Fatalf("wildcard term failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("literal %% matched %d contexts, want none", len(got))
	}
}

func testSemanticSearch(t *testing.T, newAdapter Factory) {
	s := newAdapter(t)
	ctx := context.Background()

	embed := func(id string, gen embedding.Generator) {
		t.Helper()
		mustCreate(t, s, store.CreateNoteParams{ID: id, Content: "note " + id, KeyContext: "Work"})
		v, err := gen.GenerateEmbedding(ctx, "note "+id)
		if err != nil {
			t.Fatalf("generating embedding for %s failed: %v", id, err)
		}
		if _, err := s.UpdateNote(ctx, id, store.NotePatch{
			Embedding: v, EmbeddingModel: "test-embed-1",
		}); err != nil {
			t.Fatalf("embedding %s failed: %v", id, err)
		}
	}
	embed("exact", embedding.Static{Vector: []float32{1, 0, 0}})
	embed("close", embedding.Static{Vector: []float32{0.9, 0.1, 0}})
	embed("far", embedding.Static{Vector: []float32{0, 0, 1}})

	_, err := s.SemanticSearch(ctx, nil, 0.5, 10)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty vector error = %v, want ErrValidation", err)
	}
	// A vector of the wrong length is rejected even at threshold 0, where
	// it would otherwise match every embedded note at similarity 0.
	_, err = s.SemanticSearch(ctx, []float32{1, 0}, 0.0, 10)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("wrong dimension error = %v, want ErrValidation", err)
	}
	_, err = s.SemanticSearch(ctx, []float32{1, 0, 0}, 1.5, 10)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad threshold error = %v, want ErrValidation", err)
	}
	_, err = s.SemanticSearch(ctx, []float32{1, 0, 0}, 0.5, 0)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad limit error = %v, want ErrValidation", err)
	}

	got, err := s.SemanticSearch(ctx, []float32{1, 0, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("SemanticSearch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2 (far is orthogonal to the query)", len(got))
	}
	if got[0].ID != "exact" || got[1].ID != "close" {
		t.Errorf("order = [%s %s], want [exact close]", got[0].ID, got[1].ID)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Errorf("similarities not descending: %v then %v", got[0].Similarity, got[1].Similarity)
	}
	if !hasString(got[0].Contexts, "Work") {
		t.Errorf("result contexts = %v, missing Work", got[0].Contexts)
	}

	got, err = s.SemanticSearch(ctx, []float32{1, 0, 0}, 0.0, 1)
	if err != nil {
		t.Fatalf("limited search failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "exact" {
		t.Errorf("limit 1 returned %v, want just exact", got)
	}
}

func testRenameContext(t *testing.T, newAdapter Factory) {
	t.Run("Validation", func(t *testing.T) {
		s := newAdapter(t)
		ctx := context.Background()

		_, err := s.RenameContext(ctx, "", "New")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("empty old name error = %v, want ErrValidation", err)
		}
		_, err = s.RenameContext(ctx, "Same", "Same")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("identical names error = %v, want ErrValidation", err)
		}
		_, err = s.RenameContext(ctx, "Missing", "New")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("missing old context error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		s := newAdapter(t)
		ctx := context.Background()

		mustCreate(t, s, store.CreateNoteParams{
			ID: "n1", Content: "see [[Old Plans]]", KeyContext: "Old Plans",
		})

		res, err := s.RenameContext(ctx, "Old Plans", "New Plans")
		if err != nil {
			t.Fatalf("RenameContext failed: %v", err)
		}
		if res.Merged {
			t.Error("simple rename reported a merge")
		}
		if res.NotesUpdated != 1 {
			t.Errorf("notes updated = %d, want 1", res.NotesUpdated)
		}
		if s.ContextExists(ctx, "Old Plans") {
			t.Error("old name still exists after rename")
		}
		if !s.ContextExists(ctx, "New Plans") {
			t.Error("new name missing after rename")
		}

		notes, err := s.FetchNotesByIDs(ctx, []string{"n1"})
		if err != nil || len(notes) != 1 {
			t.Fatalf("fetch after rename failed: %v (%d notes)", err, len(notes))
		}
		if !strings.Contains(notes[0].Content, "[[New Plans]]") {
			t.Errorf("content = %q, inline reference was not rewritten", notes[0].Content)
		}
		if notes[0].KeyContext != "New Plans" {
			t.Errorf("key context = %q, want New Plans", notes[0].KeyContext)
		}
	})

	t.Run("Merge", func(t *testing.T) {
		s := newAdapter(t)
		ctx := context.Background()

		// n1 sits only on Alpha, n2 on both sides of the merge.
		mustCreate(t, s, store.CreateNoteParams{
			ID: "n1", Content: "about [[Alpha]]", KeyContext: "Alpha",
		})
		mustCreate(t, s, store.CreateNoteParams{
			ID: "n2", Content: "bridges [[alpha]] and [[Beta]]", KeyContext: "Beta",
			Contexts: []string{"Alpha"},
		})

		res, err := s.RenameContext(ctx, "Alpha", "Beta")
		if err != nil {
			t.Fatalf("merge failed: %v", err)
		}
		if !res.Merged {
			t.Error("merge into an existing context not reported as such")
		}
		if res.NotesUpdated != 2 {
			t.Errorf("notes updated = %d, want 2", res.NotesUpdated)
		}
		if s.ContextExists(ctx, "Alpha") {
			t.Error("merged-away context still exists")
		}

		notes, err := s.FetchNotes(ctx, store.FetchParams{Contexts: []string{"Beta"}})
		if err != nil {
			t.Fatalf("fetch after merge failed: %v", err)
		}
		if len(notes) != 2 {
			t.Fatalf("Beta notes = %v, want n1 and n2", noteIDs(notes))
		}
		for _, n := range notes {
			if strings.Contains(strings.ToLower(n.Content), "[[alpha]]") {
				t.Errorf("note %s still references the merged-away context: %q", n.ID, n.Content)
			}
			if n.ID == "n1" && !strings.Contains(n.Content, "[[Beta]]") {
				t.Errorf("note n1 content = %q, reference was not redirected", n.Content)
			}
		}
	})
}
