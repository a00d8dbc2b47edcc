package gameclock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/store"
	"galaxy-core/internal/store/memory"
)

// Downtime of N timer intervals must recover exactly the N ticks a live
// engine would have fired in the same span.
func TestCatchupMatchesLiveFirings(t *testing.T) {
	h := newHarness(t, Options{TickInterval: 2 * time.Second})
	h.createSession(t, "s1", h.clock.now)
	ctx := context.Background()
	if _, err := h.engine.Register(ctx, "s1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	const n = 25
	for i := 0; i < n; i++ {
		h.clock.Advance(2 * time.Second)
		h.engine.Tick(ctx)
	}
	h.engine.Stop(ctx)

	h.clock.Advance(n * 2 * time.Second)
	restarted := New(h.st, h.bus, Options{TickInterval: 2 * time.Second, Now: h.clock.Now})
	info, err := restarted.Register(ctx, "s1")
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	catchups := h.rec.of(EventCatchup)
	if len(catchups) != 1 || catchups[0].Data.(CatchupEvent).MissedTicks != n {
		t.Fatalf("expected one CATCHUP of %d ticks, got %+v", n, catchups)
	}
	if info.Tick != 2*n || info.GameDate != calendar.DateAt(testEpoch, 2*n, 2000, 24) {
		t.Fatalf("unexpected clock after catch-up: %+v", info)
	}
}

func TestRegisterRejectsForeignTickPeriod(t *testing.T) {
	h := newHarness(t, Options{TickInterval: time.Second})
	ctx := context.Background()
	err := h.st.CreateGameSession(ctx, &store.GameSession{
		ID:                 "slow",
		TickPeriodMs:       5000,
		AccelerationFactor: 24,
		Epoch:              testEpoch,
		LastTickTime:       h.clock.now,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := h.engine.Register(ctx, "slow"); !errors.Is(err, ErrInvalidTimeConfig) {
		t.Fatalf("expected ErrInvalidTimeConfig, got %v", err)
	}
	if err := h.engine.CheckTimeConfig(1000, 24); err != nil {
		t.Fatalf("matching period rejected: %v", err)
	}
	if err := h.engine.CheckTimeConfig(1000, 0); !errors.Is(err, ErrInvalidTimeConfig) {
		t.Fatalf("zero acceleration accepted: %v", err)
	}
}

func TestFinishKeepsSessionWhenStoreFails(t *testing.T) {
	h := newHarness(t, Options{})
	h.createSession(t, "s1", h.clock.now)
	ctx := context.Background()
	if _, err := h.engine.Register(ctx, "s1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	h.engine.Tick(ctx)

	h.st.FailSaves(errors.New("database down"))
	if err := h.engine.Finish(ctx, "s1", "empire", "treaty"); err == nil {
		t.Fatal("expected finish to fail")
	}
	if err := h.engine.Unregister(ctx, "s1"); err == nil {
		t.Fatal("expected unregister to fail while the flush fails")
	}
	if len(h.rec.of(EventSessionEnd)) != 0 {
		t.Fatal("SESSION_END published for a failed finish")
	}
	h.engine.Tick(ctx)
	info, err := h.engine.SessionInfo("s1")
	if err != nil || info.Tick != 2 {
		t.Fatalf("session should keep ticking after failed finish: %+v %v", info, err)
	}
	if stored, _ := h.st.GetGameSession(ctx, "s1"); stored.Status == store.SessionFinished {
		t.Fatal("failed finish left the session stored as finished")
	}

	h.st.FailSaves(nil)
	if err := h.engine.Finish(ctx, "s1", "empire", "treaty"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	last := h.rec.events[len(h.rec.events)-1]
	if last.Event != EventSessionEnd {
		t.Fatalf("expected SESSION_END last, got %s", last.Event)
	}
	stored, _ := h.st.GetGameSession(ctx, "s1")
	if stored.Status != store.SessionFinished || stored.Tick != 2 {
		t.Fatalf("unexpected stored session: %+v", stored)
	}
}

// gatedStore holds the first clock write until release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SaveSessionClock(ctx context.Context, c store.SessionClock) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Store.SaveSessionClock(ctx, c)
}

// A pause issued while a periodic sync is still writing must be what the
// store ends up with.
func TestPauseSurvivesConcurrentSync(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	gs := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	ctx := context.Background()
	sess := &store.GameSession{TickPeriodMs: 1000, AccelerationFactor: 24, Epoch: testEpoch, LastTickTime: clock.now}
	if err := gs.CreateGameSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	engine := New(gs, eventbus.New(8), Options{SyncEveryTicks: 1, Now: clock.Now})
	if _, err := engine.Register(ctx, sess.ID); err != nil {
		t.Fatalf("register: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.Tick(ctx)
	}()
	<-gs.entered
	go func() {
		defer wg.Done()
		if _, err := engine.Pause(ctx, sess.ID); err != nil {
			t.Errorf("pause: %v", err)
		}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		info, _ := engine.SessionInfo(sess.ID)
		if info.IsPaused {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pause never applied")
		}
		time.Sleep(time.Millisecond)
	}
	close(gs.release)
	wg.Wait()

	stored, err := gs.GetGameSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !stored.IsPaused || stored.Status != store.SessionPaused || stored.Tick != 1 {
		t.Fatalf("pause lost to an older sync: %+v", stored)
	}
}
