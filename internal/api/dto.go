package api

import (
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/store"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	ID         string     `json:"id" example:"note-01HX" validate:"required"`
	Content    string     `json:"content" example:"Read up on [[Go Generics]]" validate:"required"`
	KeyContext string     `json:"key_context" example:"Reading" validate:"required"`
	Contexts   []string   `json:"contexts,omitempty" example:"Go,Learning"`
	Tags       []string   `json:"tags,omitempty" example:"programming"`
	NoteType   *string    `json:"note_type,omitempty" example:"idea"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Status     *string    `json:"status,omitempty" example:"TODO"`
}

// UpdateNoteRequest is the request body for a partial note update. Absent
// fields are left untouched; a present contexts field fully replaces the
// note's context links.
type UpdateNoteRequest struct {
	Content        *string    `json:"content,omitempty"`
	KeyContext     *string    `json:"key_context,omitempty"`
	Contexts       *[]string  `json:"contexts,omitempty"`
	Tags           *[]string  `json:"tags,omitempty"`
	NoteType       *string    `json:"note_type,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Embedding      []float32  `json:"embedding,omitempty"`
	EmbeddingModel string     `json:"embedding_model,omitempty"`
}

// FetchNotesResponse wraps a context fetch.
type FetchNotesResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
}

// FilterRequest is the request body for dynamic note filtering. It maps
// directly onto the filter compiler's input.
type FilterRequest = store.NoteFilter

// RenameContextRequest is the request body for a context rename or merge.
type RenameContextRequest struct {
	OldName string `json:"old_name" example:"golang" validate:"required"`
	NewName string `json:"new_name" example:"Go" validate:"required"`
}

// SearchRequest is the request body for semantic search. The query vector
// is precomputed by the caller's embedding provider.
type SearchRequest struct {
	Vector    []float32 `json:"vector" validate:"required"`
	Threshold float64   `json:"threshold" example:"0.7"`
	Limit     int       `json:"limit" example:"10"`
}

// SearchResponse wraps semantic search results.
type SearchResponse struct {
	Results []models.SearchResultNote `json:"results" validate:"required"`
}

// ContextExistsResponse reports a context existence probe.
type ContextExistsResponse struct {
	Name   string `json:"name" validate:"required"`
	Exists bool   `json:"exists" validate:"required"`
}

// ContextSearchResponse wraps context autocomplete results.
type ContextSearchResponse struct {
	Contexts []models.Context `json:"contexts" validate:"required"`
}
