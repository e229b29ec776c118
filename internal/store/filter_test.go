package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/models"
)

// testDialect renders ?-style placeholders and a json_each tag predicate,
// mirroring the embedded backend.
type testDialect struct{}

func (testDialect) Placeholder(int) string { return "?" }

func (testDialect) TagsAny(_, count int) string {
	ph := strings.TrimSuffix(strings.Repeat("?,", count), ",")
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value IN (%s))", ph)
}

func TestCompileFilterNil(t *testing.T) {
	c := CompileFilter(nil, testDialect{})
	if c.Where != "" || len(c.Args) != 0 {
		t.Errorf("nil filter produced predicates: %q %v", c.Where, c.Args)
	}
	if c.Limit != DefaultFilterLimit || c.Applied.Limit != DefaultFilterLimit {
		t.Errorf("limit = %d, applied = %d, want %d", c.Limit, c.Applied.Limit, DefaultFilterLimit)
	}
}

func TestCompileFilterLimitClamping(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 20},
		{-5, 20},
		{1, 1},
		{50, 50},
		{100000, 50},
	}
	for _, tt := range tests {
		c := CompileFilter(&NoteFilter{Limit: tt.in}, testDialect{})
		if c.Limit != tt.want {
			t.Errorf("CompileFilter(limit=%d).Limit = %d, want %d", tt.in, c.Limit, tt.want)
		}
		if c.Applied.Limit != tt.want {
			t.Errorf("applied limit = %d, want %d", c.Applied.Limit, tt.want)
		}
	}
}

func TestCompileFilterContextsAreANDed(t *testing.T) {
	c := CompileFilter(&NoteFilter{Contexts: []string{"work", "urgent"}}, testDialect{})
	if got := strings.Count(c.Where, "notes.id IN"); got != 2 {
		t.Errorf("expected 2 context subqueries, got %d: %s", got, c.Where)
	}
	if !strings.Contains(c.Where, " AND ") {
		t.Errorf("context predicates not AND-joined: %s", c.Where)
	}
	if len(c.Args) != 2 {
		t.Errorf("args = %v", c.Args)
	}
}

func TestCompileFilterHashtagsAreORed(t *testing.T) {
	c := CompileFilter(&NoteFilter{Hashtags: []string{"go", "sql"}}, testDialect{})
	if got := strings.Count(c.Where, "EXISTS ("); got != 1 {
		t.Errorf("expected a single tags predicate, got %d: %s", got, c.Where)
	}
	if len(c.Args) != 2 {
		t.Errorf("args = %v", c.Args)
	}
}

func TestCompileFilterDeadlineOn(t *testing.T) {
	day := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	c := CompileFilter(&NoteFilter{DeadlineOn: &day}, testDialect{})

	if len(c.Args) != 2 {
		t.Fatalf("expected 2 bound day bounds, got %v", c.Args)
	}
	start := c.Args[0].(time.Time)
	end := c.Args[1].(time.Time)
	if start != time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) {
		t.Errorf("day start = %v", start)
	}
	if end != time.Date(2025, 3, 14, 23, 59, 59, int(999*time.Millisecond), time.UTC) {
		t.Errorf("day end = %v", end)
	}
}

func TestCompileFilterAppliedEchoOnlySuppliedFields(t *testing.T) {
	nt := models.NoteTypeTask
	c := CompileFilter(&NoteFilter{NoteType: &nt, Limit: 10}, testDialect{})

	if c.Applied.NoteType == nil || *c.Applied.NoteType != nt {
		t.Errorf("applied note type = %v", c.Applied.NoteType)
	}
	if c.Applied.CreatedAfter != nil || c.Applied.Contexts != nil || c.Applied.Hashtags != nil ||
		c.Applied.Status != nil || c.Applied.DeadlineOn != nil {
		t.Errorf("unsupplied fields echoed: %+v", c.Applied)
	}
	if c.Applied.Limit != 10 {
		t.Errorf("applied limit = %d", c.Applied.Limit)
	}
}

func TestCompileFilterPlaceholderNumbering(t *testing.T) {
	// Postgres-style dialect: placeholders must be numbered in arg order.
	d := pgStyleDialect{}
	after := time.Now()
	c := CompileFilter(&NoteFilter{
		CreatedAfter: &after,
		Contexts:     []string{"work"},
		Hashtags:     []string{"go", "sql"},
	}, d)

	for i := 1; i <= len(c.Args); i++ {
		if !strings.Contains(c.Where, fmt.Sprintf("$%d", i)) {
			t.Errorf("missing placeholder $%d in %s", i, c.Where)
		}
	}
}

type pgStyleDialect struct{}

func (pgStyleDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (pgStyleDialect) TagsAny(start, count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", start+i)
	}
	return fmt.Sprintf("notes.tags && ARRAY[%s]::text[]", strings.Join(ph, ","))
}
