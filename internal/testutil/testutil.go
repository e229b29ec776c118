// Package testutil holds shared helpers for package tests.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/othala/internal/store/sqlite"
)

// Logger returns a logger that swallows everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// SQLiteStore opens a throwaway on-disk store in a temp directory and
// closes it when the test ends.
func SQLiteStore(t *testing.T, dim int) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "othala-test.db")
	s, err := sqlite.Open(path, dim, Logger())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close test store: %v", err)
		}
	})
	return s
}
