// Package store defines the backend-agnostic storage contract for notes and
// contexts, plus the algorithms shared by every backend: the dynamic filter
// compiler, the context rename/merge engine, and the semantic search
// executor. Concrete adapters live in the postgres and sqlite subpackages.
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
)

// FetchMethod selects how multiple context filters combine in FetchNotes.
type FetchMethod string

// Fetch methods. OR is the default.
const (
	MethodAND FetchMethod = "AND"
	MethodOR  FetchMethod = "OR"
)

// CreateNoteParams holds the input for Adapter.CreateNote.
// ID, Content, and KeyContext are required; the rest is optional.
type CreateNoteParams struct {
	ID         string
	Content    string
	KeyContext string
	Contexts   []string
	Tags       []string
	NoteType   *models.NoteType
	Deadline   *time.Time
	Status     *models.NoteStatus
}

// NotePatch holds a partial update for Adapter.UpdateNote. Nil fields are
// left untouched. A non-nil Contexts fully replaces the note's edges.
// A non-nil Embedding also stamps EmbeddingModel and the generation time.
type NotePatch struct {
	Content        *string
	KeyContext     *string
	Contexts       *[]string
	Tags           *[]string
	NoteType       *models.NoteType
	Deadline       *time.Time
	Status         *models.NoteStatus
	Embedding      []float32
	EmbeddingModel string
}

// IsEmpty reports whether the patch changes nothing.
func (p NotePatch) IsEmpty() bool {
	return p.Content == nil && p.KeyContext == nil && p.Contexts == nil &&
		p.Tags == nil && p.NoteType == nil && p.Deadline == nil &&
		p.Status == nil && p.Embedding == nil
}

// FetchParams holds the input for Adapter.FetchNotes. At least one of
// KeyContext and Contexts must be supplied.
type FetchParams struct {
	KeyContext string
	Contexts   []string
	Method     FetchMethod
}

// FilterResult is the output of Adapter.FilterNotes. TotalCount is the
// match count before the limit is applied.
type FilterResult struct {
	Notes          []models.Note  `json:"notes"`
	TotalCount     int            `json:"total_count"`
	AppliedFilters AppliedFilters `json:"applied_filters"`
}

// FilterOptions lists the distinct values currently in use, for
// suggestion UIs. All slices are trimmed, non-empty, and sorted.
type FilterOptions struct {
	Contexts  []string `json:"contexts"`
	Tags      []string `json:"tags"`
	NoteTypes []string `json:"note_types"`
	Statuses  []string `json:"statuses"`
}

// ContextStatsPage is one page of context usage statistics.
type ContextStatsPage struct {
	Contexts []models.ContextStat `json:"contexts"`
	HasMore  bool                 `json:"has_more"`
}

// RenameResult summarizes a completed context rename or merge.
type RenameResult struct {
	OldName      string `json:"old_name"`
	NewName      string `json:"new_name"`
	Merged       bool   `json:"merged"`
	NotesUpdated int    `json:"notes_updated"`
}

// Adapter is the operation contract implemented identically by every
// backend. All blocking operations take a context; each call acquires its
// own backend handle and releases it on every exit path.
type Adapter interface {
	// CreateNote persists a new note, upserting and linking all named
	// contexts (the key context included). Fails with ErrPersistence when
	// the id already exists or the backend rejects the write.
	CreateNote(ctx context.Context, p CreateNoteParams) (*models.Note, error)

	// UpdateNote applies a partial update. A present Contexts field fully
	// replaces the note's edges. Fails with ErrNoOp on an empty patch and
	// ErrNotFound when the note does not exist.
	UpdateNote(ctx context.Context, id string, patch NotePatch) (*models.Note, error)

	// DeleteNote removes the note's edges first, then the note row.
	// Deleting a missing id is not an error.
	DeleteNote(ctx context.Context, id string) error

	// FetchNotes returns notes matching the key context and/or context
	// names, newest first. MethodAND requires all listed contexts,
	// MethodOR (default) any. Fails with ErrValidation when neither
	// filter is supplied.
	FetchNotes(ctx context.Context, p FetchParams) ([]models.Note, error)

	// FetchNotesByIDs returns the matching notes in arbitrary order.
	// An empty input returns an empty result without querying.
	FetchNotesByIDs(ctx context.Context, ids []string) ([]models.Note, error)

	// FilterNotes applies the compiled filter and returns one page of
	// notes plus the unlimited match count and the applied-filters echo.
	FilterNotes(ctx context.Context, f *NoteFilter) (*FilterResult, error)

	// GetFilterOptions returns the distinct values currently in use.
	GetFilterOptions(ctx context.Context) (*FilterOptions, error)

	// FetchContextStats returns paginated context usage statistics.
	FetchContextStats(ctx context.Context, limit, offset int) (*ContextStatsPage, error)

	// SearchContexts matches context names by substring for autocomplete.
	// An empty term returns empty results without querying.
	SearchContexts(ctx context.Context, term string, limit int) ([]models.Context, error)

	// SemanticSearch runs nearest-neighbour retrieval over a precomputed
	// query vector. Results are sorted by similarity descending and
	// filtered to similarity >= threshold.
	SemanticSearch(ctx context.Context, vector []float32, threshold float64, limit int) ([]models.SearchResultNote, error)

	// RenameContext renames oldName to newName, or merges it into an
	// existing newName, in a single transaction.
	RenameContext(ctx context.Context, oldName, newName string) (*RenameResult, error)

	// ContextExists probes for a context by name. Probe failures report
	// false rather than an error.
	ContextExists(ctx context.Context, name string) bool

	// Close releases all backend resources.
	Close() error
}

// NormalizeOptions trims, drops empty values, deduplicates, and sorts a
// filter-option list lexicographically.
func NormalizeOptions(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// LinkSet returns the union of the named contexts and the key context,
// deduplicated with original order preserved. Empty names are dropped.
func LinkSet(keyContext string, contexts []string) []string {
	seen := make(map[string]struct{}, len(contexts)+1)
	out := make([]string, 0, len(contexts)+1)
	for _, name := range append([]string{keyContext}, contexts...) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
