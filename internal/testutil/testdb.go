package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"galaxy-core/internal/config"
	"galaxy-core/internal/store"
	"galaxy-core/internal/store/memory"
	"galaxy-core/internal/store/sqlite"
)

// Backends opens every store implementation available to the test run:
// memory and SQLite always, Postgres when TEST_POSTGRES_DSN is set. Each is
// closed when the test ends.
func Backends(t *testing.T) map[string]store.Backend {
	t.Helper()
	out := map[string]store.Backend{"memory": memory.New()}

	lite, err := sqlite.Open(filepath.Join(t.TempDir(), "galaxy.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(lite.Close)
	out["sqlite"] = lite

	if _, err := config.LoadTest(); err == nil {
		pg, cleanup := OpenTestStore(t)
		t.Cleanup(cleanup)
		out["postgres"] = pg
	}
	return out
}

// OpenTestStore opens Postgres in a throwaway schema with the migrations
// applied. It skips the test when TEST_POSTGRES_DSN is unset.
func OpenTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	return openSchemaStore(t, cfg, fmt.Sprintf("test_%d", time.Now().UnixNano()))
}

func openSchemaStore(t *testing.T, cfg config.TestConfig, schema string) (*store.Store, func()) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateSchema(ctx, cfg.TestPostgresDSN, schema); err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}
	st, err := store.New(store.WithSearchPath(cfg.TestPostgresDSN, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		t.Fatalf("migrate: %v", err)
	}
	return st, func() {
		st.Close()
		if cfg.KeepSchema {
			t.Logf("keeping test schema %s", schema)
			return
		}
		if err := store.DropSchema(ctx, cfg.TestPostgresDSN, schema); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	}
}
