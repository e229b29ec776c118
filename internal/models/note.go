// Package models defines the domain types for Othala.
package models

import "time"

// NoteType classifies a note. The set is closed; a nil value means untyped.
type NoteType string

// Note types.
const (
	NoteTypeIdea      NoteType = "idea"
	NoteTypeTask      NoteType = "task"
	NoteTypeJournal   NoteType = "journal"
	NoteTypeReference NoteType = "reference"
)

// Valid reports whether t is one of the known note types.
func (t NoteType) Valid() bool {
	switch t {
	case NoteTypeIdea, NoteTypeTask, NoteTypeJournal, NoteTypeReference:
		return true
	}
	return false
}

// NoteStatus tracks the workflow state of a task-like note.
type NoteStatus string

// Note statuses.
const (
	StatusTodo     NoteStatus = "TODO"
	StatusDoing    NoteStatus = "DOING"
	StatusDone     NoteStatus = "DONE"
	StatusObsolete NoteStatus = "OBSOLETE"
)

// Valid reports whether s is one of the known statuses.
func (s NoteStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone, StatusObsolete:
		return true
	}
	return false
}

// Note is a single persisted note. The ID is caller-generated and never
// reused. Content may embed inline [[Context Name]] references; those are
// not validated by the storage layer outside of context renames.
type Note struct {
	ID                 string      `json:"id"`
	Content            string      `json:"content"`
	KeyContext         string      `json:"key_context,omitempty"`
	Contexts           []string    `json:"contexts"`
	Tags               []string    `json:"tags"`
	NoteType           *NoteType   `json:"note_type,omitempty"`
	Embedding          []float32   `json:"-"`
	EmbeddingModel     string      `json:"embedding_model,omitempty"`
	EmbeddingCreatedAt *time.Time  `json:"embedding_created_at,omitempty"`
	Deadline           *time.Time  `json:"deadline,omitempty"`
	Status             *NoteStatus `json:"status,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Context is a named node in the user's knowledge graph. Names are globally
// unique and case-sensitive. Contexts are created implicitly the first time
// a note references them.
type Context struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteContext is a many-to-many edge between a note and a context.
// The (NoteID, ContextID) pair is unique.
type NoteContext struct {
	NoteID    string    `json:"note_id"`
	ContextID string    `json:"context_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchResultNote is one semantic search hit with its similarity score.
type SearchResultNote struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	KeyContext string    `json:"key_context,omitempty"`
	Contexts   []string  `json:"contexts"`
	Tags       []string  `json:"tags"`
	NoteType   *NoteType `json:"note_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Similarity float64   `json:"similarity"`
}

// ContextStat is a context with its usage count and most recent link time.
type ContextStat struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Count    int        `json:"count"`
	LastUsed *time.Time `json:"last_used,omitempty"`
}
