package eventpush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/eventpush/platforms"
	"galaxy-core/internal/gameclock"
)

type recordAdapter struct {
	mu     sync.Mutex
	fail   bool
	events []string
}

func (a *recordAdapter) Name() string { return "record" }

func (a *recordAdapter) Send(_ context.Context, _ string, _ string, msg platforms.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, _ := msg.Payload.(eventbus.Event)
	a.events = append(a.events, ev.Event)
	if a.fail {
		return errors.New("failed")
	}
	return nil
}

func (a *recordAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func (a *recordAdapter) Events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func startManager(t *testing.T, cfg Config, adapter *recordAdapter) *Manager {
	t.Helper()
	m := NewManager(cfg)
	m.adapters = map[string]platforms.Adapter{"record": adapter}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var recordTarget = Target{Platform: "record", Endpoint: "https://example.com", ScopeType: ScopeAll, Enabled: true}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	cfg := Config{
		Enabled:   true,
		Targets:   []Target{recordTarget},
		Workers:   1,
		RetryMax:  1,
		RetryBase: 5 * time.Millisecond,
	}
	adapter := &recordAdapter{fail: true}
	m := startManager(t, cfg, adapter)

	if !m.enqueue(pushJob{Target: recordTarget, Message: platforms.Message{Title: "x"}}) {
		t.Fatal("enqueue failed")
	}
	waitFor(t, func() bool { return adapter.Calls() >= 2 })
	time.Sleep(60 * time.Millisecond)
	if got := adapter.Calls(); got != 2 {
		t.Fatalf("expected 2 calls (initial + 1 retry), got %d", got)
	}
}

func TestCircuitOpenSkipsSubsequentSends(t *testing.T) {
	cfg := Config{
		Enabled:             true,
		Targets:             []Target{recordTarget},
		Workers:             1,
		RetryMax:            0,
		RetryBase:           5 * time.Millisecond,
		FailureThreshold:    1,
		CircuitOpenDuration: time.Minute,
	}
	adapter := &recordAdapter{fail: true}
	m := startManager(t, cfg, adapter)

	job := pushJob{Target: recordTarget, Message: platforms.Message{Title: "x"}}
	if !m.enqueue(job) {
		t.Fatal("enqueue first failed")
	}
	waitFor(t, func() bool { return adapter.Calls() == 1 })
	if !m.enqueue(job) {
		t.Fatal("enqueue second failed")
	}
	time.Sleep(60 * time.Millisecond)
	if got := adapter.Calls(); got != 1 {
		t.Fatalf("expected 1 call due to circuit open, got %d", got)
	}
}

func TestManagerForwardsBusEvents(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Targets: []Target{recordTarget},
		Workers: 1,
	}
	adapter := &recordAdapter{}
	m := startManager(t, cfg, adapter)

	bus := eventbus.New(8)
	detach := m.Attach(bus)
	defer detach()

	bus.Publish(gameclock.EventTimeTick, "s1", gameclock.TickEvent{SessionID: "s1", Tick: 1})
	bus.Publish(gameclock.EventDayStart, "s1", gameclock.DayStartEvent{SessionID: "s1", Day: 2, Month: 1, Year: 184})
	bus.Publish(gameclock.EventSessionEnd, "s1", gameclock.SessionEndEvent{SessionID: "s1"})

	waitFor(t, func() bool { return adapter.Calls() == 2 })
	got := adapter.Events()
	if got[0] != gameclock.EventDayStart || got[1] != gameclock.EventSessionEnd {
		t.Fatalf("unexpected forwarded events: %v", got)
	}
}

func TestDisabledManagerIgnoresEvents(t *testing.T) {
	m := NewManager(Config{Targets: []Target{recordTarget}})
	if m.Enabled() {
		t.Fatal("manager without Enabled must report disabled")
	}
	m.HandleEvent(eventbus.Event{Event: gameclock.EventDayStart, Data: gameclock.DayStartEvent{}})
	if len(m.dispatchCh) != 0 {
		t.Fatal("disabled manager queued a job")
	}
}
