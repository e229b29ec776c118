package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
)

func staticRows(rows []RawSearchRow) SimilarityFunc {
	return func(context.Context, []float32, float64, int) ([]RawSearchRow, error) {
		return rows, nil
	}
}

func TestExecuteSemanticSearchValidatesBeforeQuerying(t *testing.T) {
	called := false
	fn := func(context.Context, []float32, float64, int) ([]RawSearchRow, error) {
		called = true
		return nil, nil
	}

	tests := []struct {
		name      string
		vector    []float32
		threshold float64
		limit     int
	}{
		{"empty vector", nil, 0.5, 10},
		{"threshold below range", []float32{1}, -0.1, 10},
		{"threshold above range", []float32{1}, 1.1, 10},
		{"limit zero", []float32{1}, 0.5, 0},
		{"limit above cap", []float32{1}, 0.5, 1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExecuteSemanticSearch(context.Background(), fn, tt.vector, tt.threshold, tt.limit)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			if called {
				t.Error("backend queried despite invalid input")
			}
		})
	}
}

func TestExecuteSemanticSearchNormalizesRows(t *testing.T) {
	now := time.Now().UTC()
	key := "work"
	rows := []RawSearchRow{
		{
			// Postgres shape: native slices and pointers.
			ID: "n1", Content: "a", KeyContext: &key,
			Contexts: []string{"work", "go"}, Tags: []string{"x"},
			NoteType: "task", CreatedAt: now, UpdatedAt: now, Similarity: 0.9,
		},
		{
			// SQLite shape: JSON-encoded arrays, NULLs as nil.
			ID: "n2", Content: "b", KeyContext: nil,
			Contexts: `["home"]`, Tags: []byte(`[]`),
			NoteType: nil, CreatedAt: now, UpdatedAt: now, Similarity: 0.7,
		},
		{
			// json_group_array over an empty join.
			ID: "n3", Content: "c", KeyContext: "",
			Contexts: `[null]`, Tags: nil,
			NoteType: "", CreatedAt: now, UpdatedAt: now, Similarity: 0.5,
		},
	}

	got, err := ExecuteSemanticSearch(context.Background(), staticRows(rows), []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("ExecuteSemanticSearch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}

	if got[0].KeyContext != "work" || len(got[0].Contexts) != 2 || got[0].NoteType == nil {
		t.Errorf("pg row normalized badly: %+v", got[0])
	}
	if got[1].KeyContext != "" || len(got[1].Contexts) != 1 || got[1].Contexts[0] != "home" {
		t.Errorf("sqlite row normalized badly: %+v", got[1])
	}
	if got[1].Tags == nil || len(got[1].Tags) != 0 {
		t.Errorf("empty tags must be an empty slice, got %v", got[1].Tags)
	}
	if len(got[2].Contexts) != 0 || got[2].NoteType != nil {
		t.Errorf("null row normalized badly: %+v", got[2])
	}

	for i := 1; i < len(got); i++ {
		if got[i-1].Similarity < got[i].Similarity {
			t.Errorf("results out of order at %d", i)
		}
	}
}

func TestExecuteSemanticSearchPropagatesBackendError(t *testing.T) {
	boom := errors.New("vector index unavailable")
	fn := func(context.Context, []float32, float64, int) ([]RawSearchRow, error) {
		return nil, boom
	}
	_, err := ExecuteSemanticSearch(context.Background(), fn, []float32{1}, 0.5, 5)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want backend cause", err)
	}
}
