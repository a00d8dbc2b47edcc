package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/config"
)

// openStore gives each test its own schema so runs never share rows.
func openStore(t *testing.T) (*Store, context.Context, func()) {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	ctx := context.Background()
	schema := fmt.Sprintf("store_test_%d", time.Now().UnixNano())
	if err := CreateSchema(ctx, cfg.TestPostgresDSN, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	st, err := New(WithSearchPath(cfg.TestPostgresDSN, schema))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		t.Fatalf("migrate: %v", err)
	}
	cleanup := func() {
		st.Close()
		if cfg.KeepSchema {
			t.Logf("keeping test schema %s", schema)
			return
		}
		_ = DropSchema(ctx, cfg.TestPostgresDSN, schema)
	}
	return st, ctx, cleanup
}

func mustCreateSession(t *testing.T, st *Store, ctx context.Context) *GameSession {
	t.Helper()
	sess := &GameSession{
		TickPeriodMs:       1000,
		AccelerationFactor: 24,
		Epoch:              calendar.GameDate{Year: 184, Month: 1, Day: 1},
	}
	if err := st.CreateGameSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func mustCreateLedger(t *testing.T, st *Store, ctx context.Context, sessionID string, pcp, mcp int64) string {
	t.Helper()
	actorID := NewID()
	err := st.EnsureActorLedger(ctx, ActorLedger{
		ActorID:   actorID,
		SessionID: sessionID,
		Counters: map[string]Counter{
			"pcp": {Name: "pcp", Balance: pcp, Max: 24},
			"mcp": {Name: "mcp", Balance: mcp, Max: 24},
		},
	})
	if err != nil {
		t.Fatalf("ensure ledger: %v", err)
	}
	return actorID
}
