package store

import (
	"context"
	"time"
)

// Backend is the full persistence surface. The Postgres, SQLite and memory
// stores all satisfy it, so the server can pick one at startup.
type Backend interface {
	Ping(ctx context.Context) error
	Close()

	CreateGameSession(ctx context.Context, sess *GameSession) error
	GetGameSession(ctx context.Context, id string) (*GameSession, error)
	SaveSessionClock(ctx context.Context, c SessionClock) error
	RecordSessionEnd(ctx context.Context, id, winnerID, reason string) error

	EnsureActorLedger(ctx context.Context, l ActorLedger) error
	GetActorLedger(ctx context.Context, actorID string) (*ActorLedger, error)
	SwapCounters(ctx context.Context, actorID string, swaps []CounterSwap, meta EntryMeta) (bool, error)
	CreditCounters(ctx context.Context, actorID string, credits []CounterCredit, meta EntryMeta) (map[string]int64, error)
	RecoverSessionCounters(ctx context.Context, sessionID string, amount int64, at time.Time) (int64, error)
	ListLedgerEntries(ctx context.Context, actorID string, limit int) ([]LedgerEntry, error)
}

var _ Backend = (*Store)(nil)
