package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Semantic search bounds.
const (
	MinSearchLimit = 1
	MaxSearchLimit = 1000
)

// RawSearchRow is one row from a backend similarity primitive before
// normalization. KeyContext, Contexts, Tags, and NoteType are loosely
// typed because the backends disagree on null and array representations
// (Postgres returns text[] and NULLs, SQLite JSON-encoded text).
type RawSearchRow struct {
	ID         string
	Content    string
	KeyContext any
	Contexts   any
	Tags       any
	NoteType   any
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Similarity float64
}

// SimilarityFunc is a backend-native similarity primitive. It must return
// rows already filtered to similarity >= threshold, sorted by similarity
// descending, and capped at limit.
type SimilarityFunc func(ctx context.Context, vector []float32, threshold float64, limit int) ([]RawSearchRow, error)

// ExecuteSemanticSearch validates the query inputs, delegates to the
// backend primitive, and normalizes the heterogeneous raw rows into the
// uniform search-result shape. Message formatting is left to the caller.
func ExecuteSemanticSearch(ctx context.Context, fn SimilarityFunc, vector []float32, threshold float64, limit int) ([]models.SearchResultNote, error) {
	if len(vector) == 0 {
		return nil, apperr.Validationf("query vector is empty")
	}
	if threshold < 0 || threshold > 1 {
		return nil, apperr.Validationf("similarity threshold %v out of range [0,1]", threshold)
	}
	if limit < MinSearchLimit || limit > MaxSearchLimit {
		return nil, apperr.Validationf("search limit %d out of range [%d,%d]", limit, MinSearchLimit, MaxSearchLimit)
	}

	rows, err := fn(ctx, vector, threshold, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResultNote, 0, len(rows))
	for _, r := range rows {
		n := models.SearchResultNote{
			ID:         r.ID,
			Content:    r.Content,
			KeyContext: stringValue(r.KeyContext),
			Contexts:   stringList(r.Contexts),
			Tags:       stringList(r.Tags),
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
			Similarity: r.Similarity,
		}
		if t := stringValue(r.NoteType); t != "" {
			nt := models.NoteType(t)
			n.NoteType = &nt
		}
		out = append(out, n)
	}
	return out, nil
}

// stringValue flattens the null/pointer representations backends use for
// optional text columns.
func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case *string:
		if s == nil {
			return ""
		}
		return *s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

// stringList flattens the array representations backends use: native
// string slices, JSON-encoded text, or NULL.
func stringList(v any) []string {
	switch l := v.(type) {
	case nil:
		return []string{}
	case []string:
		if l == nil {
			return []string{}
		}
		return l
	case string:
		return decodeJSONList([]byte(l))
	case []byte:
		return decodeJSONList(l)
	default:
		return []string{}
	}
}

func decodeJSONList(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return []string{}
	}
	// SQLite's json_group_array over an empty join yields [null].
	filtered := out[:0]
	for _, s := range out {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
