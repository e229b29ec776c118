package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/starford/othala/internal/store"
	"github.com/starford/othala/internal/store/postgres"
	"github.com/starford/othala/internal/store/storetest"
	"github.com/starford/othala/internal/testutil"
)

const dsnEnv = "OTHALA_TEST_POSTGRES_DSN"

// TestAdapterConformance needs a disposable database with the pgvector
// extension available. It is skipped unless OTHALA_TEST_POSTGRES_DSN is
// set; the referenced database is truncated between subtests.
func TestAdapterConformance(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	storetest.Run(t, func(t *testing.T) store.Adapter {
		ctx := context.Background()

		s, err := postgres.New(ctx, dsn, storetest.Dim, testutil.Logger())
		if err != nil {
			t.Fatalf("connect test store: %v", err)
		}
		t.Cleanup(func() {
			if err := s.Close(); err != nil {
				t.Errorf("close test store: %v", err)
			}
		})

		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			t.Fatalf("connect for truncate: %v", err)
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, `TRUNCATE notes, contexts, notes_contexts`); err != nil {
			t.Fatalf("truncate test tables: %v", err)
		}
		return s
	})
}
