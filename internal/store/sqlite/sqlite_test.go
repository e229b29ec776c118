package sqlite_test

import (
	"context"
	"testing"

	"github.com/starford/othala/internal/store"
	"github.com/starford/othala/internal/store/storetest"
	"github.com/starford/othala/internal/testutil"
)

func TestAdapterConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Adapter {
		return testutil.SQLiteStore(t, storetest.Dim)
	})
}

func TestOpenIsIdempotent(t *testing.T) {
	s := testutil.SQLiteStore(t, storetest.Dim)
	ctx := context.Background()

	// The schema applies on every open; a reopened database keeps its data.
	if _, err := s.CreateNote(ctx, store.CreateNoteParams{
		ID: "n1", Content: "persists", KeyContext: "Work",
	}); err != nil {
		t.Fatalf("CreateNote failed: %v", err)
	}

	notes, err := s.FetchNotesByIDs(ctx, []string{"n1"})
	if err != nil {
		t.Fatalf("FetchNotesByIDs failed: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(notes))
	}
}
