package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
)

// Filter limit bounds.
const (
	DefaultFilterLimit = 20
	MaxFilterLimit     = 50
)

// NoteFilter is the optional-field filter accepted by FilterNotes. All
// supplied fields are AND-composed. Contexts use AND semantics (the note
// must carry every listed context) — unlike FetchNotes, whose default is
// OR. Hashtags use OR semantics (any listed tag).
type NoteFilter struct {
	CreatedAfter   *time.Time         `json:"created_after,omitempty"`
	CreatedBefore  *time.Time         `json:"created_before,omitempty"`
	Contexts       []string           `json:"contexts,omitempty"`
	Hashtags       []string           `json:"hashtags,omitempty"`
	NoteType       *models.NoteType   `json:"note_type,omitempty"`
	Status         *models.NoteStatus `json:"status,omitempty"`
	DeadlineAfter  *time.Time         `json:"deadline_after,omitempty"`
	DeadlineBefore *time.Time         `json:"deadline_before,omitempty"`
	DeadlineOn     *time.Time         `json:"deadline_on,omitempty"`
	Limit          int                `json:"limit,omitempty"`
}

// AppliedFilters echoes back the fields that were actually supplied, plus
// the resolved limit, so callers can report what ran without re-deriving it.
type AppliedFilters struct {
	CreatedAfter   *time.Time         `json:"created_after,omitempty"`
	CreatedBefore  *time.Time         `json:"created_before,omitempty"`
	Contexts       []string           `json:"contexts,omitempty"`
	Hashtags       []string           `json:"hashtags,omitempty"`
	NoteType       *models.NoteType   `json:"note_type,omitempty"`
	Status         *models.NoteStatus `json:"status,omitempty"`
	DeadlineAfter  *time.Time         `json:"deadline_after,omitempty"`
	DeadlineBefore *time.Time         `json:"deadline_before,omitempty"`
	DeadlineOn     *time.Time         `json:"deadline_on,omitempty"`
	Limit          int                `json:"limit"`
}

// Dialect supplies the backend-specific SQL fragments the filter compiler
// cannot express generically.
type Dialect interface {
	// Placeholder renders the 1-based nth bind parameter ("?" or "$n").
	Placeholder(n int) string
	// TagsAny renders a predicate matching notes carrying any of count
	// tags bound at parameters start..start+count-1.
	TagsAny(start, count int) string
}

// CompiledFilter is a conjunctive predicate set ready to splice into a
// SELECT or COUNT over the notes table.
type CompiledFilter struct {
	// Where holds the AND-joined predicate, empty when unfiltered.
	Where string
	// Args holds the bind parameters, in placeholder order. The limit is
	// not included; it binds separately.
	Args []any
	// Limit is the clamped page size.
	Limit int
	// Applied echoes the supplied fields.
	Applied AppliedFilters
}

// WhereClause returns " WHERE ..." or the empty string.
func (c *CompiledFilter) WhereClause() string {
	if c.Where == "" {
		return ""
	}
	return " WHERE " + c.Where
}

// CompileFilter translates a filter object into a predicate set plus a
// clamped limit. A nil filter compiles to the default limit and no
// predicates.
func CompileFilter(f *NoteFilter, d Dialect) *CompiledFilter {
	c := &CompiledFilter{Limit: DefaultFilterLimit}
	if f == nil {
		c.Applied.Limit = c.Limit
		return c
	}

	var conds []string
	arg := func(v any) string {
		c.Args = append(c.Args, v)
		return d.Placeholder(len(c.Args))
	}

	if f.CreatedAfter != nil {
		conds = append(conds, fmt.Sprintf("notes.created_at >= %s", arg(*f.CreatedAfter)))
		c.Applied.CreatedAfter = f.CreatedAfter
	}
	if f.CreatedBefore != nil {
		conds = append(conds, fmt.Sprintf("notes.created_at <= %s", arg(*f.CreatedBefore)))
		c.Applied.CreatedBefore = f.CreatedBefore
	}

	// Contexts: AND semantics — one edge-subquery predicate per name.
	for _, name := range f.Contexts {
		conds = append(conds, fmt.Sprintf(
			"notes.id IN (SELECT nc.note_id FROM notes_contexts nc JOIN contexts c ON c.id = nc.context_id WHERE c.name = %s)",
			arg(name)))
	}
	if len(f.Contexts) > 0 {
		c.Applied.Contexts = f.Contexts
	}

	// Hashtags: OR semantics — any listed tag present.
	if len(f.Hashtags) > 0 {
		start := len(c.Args) + 1
		for _, tag := range f.Hashtags {
			c.Args = append(c.Args, tag)
		}
		conds = append(conds, d.TagsAny(start, len(f.Hashtags)))
		c.Applied.Hashtags = f.Hashtags
	}

	if f.NoteType != nil {
		conds = append(conds, fmt.Sprintf("notes.note_type = %s", arg(string(*f.NoteType))))
		c.Applied.NoteType = f.NoteType
	}
	if f.Status != nil {
		conds = append(conds, fmt.Sprintf("notes.status = %s", arg(string(*f.Status))))
		c.Applied.Status = f.Status
	}

	if f.DeadlineAfter != nil {
		conds = append(conds, fmt.Sprintf("notes.deadline >= %s", arg(*f.DeadlineAfter)))
		c.Applied.DeadlineAfter = f.DeadlineAfter
	}
	if f.DeadlineBefore != nil {
		conds = append(conds, fmt.Sprintf("notes.deadline <= %s", arg(*f.DeadlineBefore)))
		c.Applied.DeadlineBefore = f.DeadlineBefore
	}
	if f.DeadlineOn != nil {
		start, end := dayBoundsUTC(*f.DeadlineOn)
		conds = append(conds, fmt.Sprintf("notes.deadline >= %s AND notes.deadline <= %s", arg(start), arg(end)))
		c.Applied.DeadlineOn = f.DeadlineOn
	}

	c.Where = strings.Join(conds, " AND ")
	c.Limit = ClampLimit(f.Limit)
	c.Applied.Limit = c.Limit
	return c
}

// ClampLimit resolves a requested page size into [1, MaxFilterLimit],
// defaulting when unset or non-positive.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultFilterLimit
	}
	if limit > MaxFilterLimit {
		return MaxFilterLimit
	}
	return limit
}

// dayBoundsUTC returns the inclusive [00:00:00.000, 23:59:59.999] window of
// the given calendar day in UTC.
func dayBoundsUTC(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	return start, end
}
