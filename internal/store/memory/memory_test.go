package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/store"
)

func TestSessionSaveIsMonotonic(t *testing.T) {
	st := New()
	ctx := context.Background()
	sess := &store.GameSession{TickPeriodMs: 1000, AccelerationFactor: 24, Epoch: calendar.GameDate{Year: 184, Month: 1, Day: 1}}
	if err := st.CreateGameSession(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" || sess.Status != store.SessionPreparing {
		t.Fatalf("defaults not applied: %+v", sess)
	}
	if err := st.SaveSessionClock(ctx, store.SessionClock{SessionID: sess.ID, Tick: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveSessionClock(ctx, store.SessionClock{SessionID: sess.ID, Tick: 4}); !errors.Is(err, store.ErrStaleClock) {
		t.Fatalf("expected ErrStaleClock, got %v", err)
	}
	got, err := st.GetGameSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GameDate != calendar.DateAt(sess.Epoch, 5, 1000, 24) {
		t.Fatalf("game date not derived from tick: %s", got.GameDate)
	}
}

func TestSwapCountersConcurrent(t *testing.T) {
	st := New()
	ctx := context.Background()
	if err := st.EnsureActorLedger(ctx, store.ActorLedger{
		ActorID:   "a1",
		SessionID: "s1",
		Counters:  map[string]store.Counter{"pcp": {Balance: 10, Max: 24}},
	}); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := st.SwapCounters(ctx, "a1", []store.CounterSwap{{Counter: "pcp", Expected: 10, Next: 0}}, store.EntryMeta{})
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestEnsureKeepsExistingBalances(t *testing.T) {
	st := New()
	ctx := context.Background()
	l := store.ActorLedger{ActorID: "a1", SessionID: "s1", Counters: map[string]store.Counter{"pcp": {Balance: 10, Max: 24}}}
	_ = st.EnsureActorLedger(ctx, l)
	if _, err := st.CreditCounters(ctx, "a1", []store.CounterCredit{{Counter: "pcp", Amount: 30}}, store.EntryMeta{}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	_ = st.EnsureActorLedger(ctx, l)
	got, _ := st.GetActorLedger(ctx, "a1")
	if got.Balance("pcp") != 24 {
		t.Fatalf("pcp = %d, want 24", got.Balance("pcp"))
	}
	n, _ := st.RecoverSessionCounters(ctx, "other", 1, time.Now())
	if n != 0 {
		t.Fatalf("recovered %d counters of another session", n)
	}
}
