package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/ledger"
	"galaxy-core/internal/store"
	"galaxy-core/internal/store/memory"
)

type fixture struct {
	st       *memory.Store
	bus      *eventbus.Bus
	registry *Registry
	events   []string
	mu       sync.Mutex
}

func newFixture(t *testing.T, pcp, mcp int64) *fixture {
	t.Helper()
	f := &fixture{st: memory.New(), bus: eventbus.New(32)}
	err := f.st.EnsureActorLedger(context.Background(), store.ActorLedger{
		ActorID:   "actor-1",
		SessionID: "s1",
		Counters: map[string]store.Counter{
			ledger.CounterPCP: {Balance: pcp, Max: 24},
			ledger.CounterMCP: {Balance: mcp, Max: 24},
		},
	})
	if err != nil {
		t.Fatalf("ensure ledger: %v", err)
	}
	f.bus.Handle(func(ev eventbus.Event) {
		f.mu.Lock()
		f.events = append(f.events, ev.Event)
		f.mu.Unlock()
	})
	f.registry = NewRegistry(ledger.New(f.st, ledger.Options{}), f.bus)
	return f
}

func (f *fixture) balance(t *testing.T, counter string) int64 {
	t.Helper()
	led, err := f.st.GetActorLedger(context.Background(), "actor-1")
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	return led.Balance(counter)
}

func (f *fixture) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

func costing(id, costType string, amount int64) Func {
	return Func{
		Def: Definition{ID: id, Name: id, CostType: costType, CostAmount: amount},
		ExecuteFn: func(_ context.Context, ec ExecContext) (map[string]any, error) {
			return map[string]any{"actor": ec.ActorID}, nil
		},
	}
}

var ec = ExecContext{SessionID: "s1", ActorID: "actor-1"}

func TestExecuteDebitsThenRejectsRepeat(t *testing.T) {
	f := newFixture(t, 5, 0)
	if err := f.registry.Register(costing("decree", ledger.CounterPCP, 5)); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	res := f.registry.Execute(ctx, "decree", ec)
	if !res.Success || res.Consumed[ledger.CounterPCP] != 5 || res.Data["actor"] != "actor-1" {
		t.Fatalf("unexpected first result: %+v", res)
	}
	if got := f.balance(t, ledger.CounterPCP); got != 0 {
		t.Fatalf("expected pcp 0, got %d", got)
	}

	res = f.registry.Execute(ctx, "decree", ec)
	if res.Success || res.Code != CodeInsufficientResource {
		t.Fatalf("expected insufficient_resource, got %+v", res)
	}
	if !errors.Is(res.Err(), ErrInsufficient) {
		t.Fatalf("expected ErrInsufficient, got %v", res.Err())
	}
	if !strings.Contains(res.Message, "required 5") {
		t.Fatalf("message lacks shortfall: %q", res.Message)
	}
	if got := f.balance(t, ledger.CounterPCP); got != 0 {
		t.Fatalf("expected pcp to stay 0, got %d", got)
	}
	if f.count(EventCommandExecuted) != 1 || f.count(EventCommandFailed) != 1 {
		t.Fatalf("unexpected events: %v", f.events)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	f := newFixture(t, 5, 5)
	res := f.registry.Execute(context.Background(), "nope", ec)
	if res.Success || res.Code != CodeUnknownCommand || !errors.Is(res.Err(), ErrUnknownCommand) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Retryable() {
		t.Fatalf("unknown command must not be retryable")
	}
}

func TestExecuteValidationShortCircuits(t *testing.T) {
	f := newFixture(t, 5, 5)
	executed := false
	cmd := Func{
		Def: Definition{ID: "move", CostType: ledger.CounterMCP, CostAmount: 2},
		ValidateFn: func(context.Context, ExecContext) error {
			return errors.New("fleet is not in port")
		},
		ExecuteFn: func(context.Context, ExecContext) (map[string]any, error) {
			executed = true
			return nil, nil
		},
	}
	if err := f.registry.Register(cmd); err != nil {
		t.Fatalf("register: %v", err)
	}
	res := f.registry.Execute(context.Background(), "move", ec)
	if res.Code != CodeValidationFailed || res.Message != "fleet is not in port" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if executed || f.balance(t, ledger.CounterMCP) != 5 {
		t.Fatalf("validation failure had side effects")
	}
}

func TestExecuteRollsBackOnError(t *testing.T) {
	f := newFixture(t, 7, 3)
	cmd := Func{
		Def: Definition{ID: "raid", CostType: ledger.CounterPCP, CostAmount: 4},
		ExecuteFn: func(context.Context, ExecContext) (map[string]any, error) {
			return nil, errors.New("target vanished")
		},
	}
	if err := f.registry.Register(cmd); err != nil {
		t.Fatalf("register: %v", err)
	}
	res := f.registry.Execute(context.Background(), "raid", ec)
	if res.Code != CodeExecutionFailed || res.Message != "target vanished" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.balance(t, ledger.CounterPCP) != 7 || f.balance(t, ledger.CounterMCP) != 3 {
		t.Fatalf("rollback did not restore balances")
	}
	if f.count(EventCommandRolledBack) != 1 {
		t.Fatalf("expected one COMMAND_ROLLED_BACK, got %v", f.events)
	}
	stats := f.registry.Stats().Executions["raid"]
	if stats.Failed != 1 || stats.RolledBack != 1 || stats.Executed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestExecuteRollsBackSubstitutedDebitOnPanic(t *testing.T) {
	f := newFixture(t, 0, 10)
	cmd := Func{
		Def: Definition{ID: "raid", CostType: ledger.CounterPCP, CostAmount: 3},
		ExecuteFn: func(context.Context, ExecContext) (map[string]any, error) {
			panic("boom")
		},
	}
	if err := f.registry.Register(cmd); err != nil {
		t.Fatalf("register: %v", err)
	}
	res := f.registry.Execute(context.Background(), "raid", ec)
	if res.Code != CodeExecutionFailed || !strings.Contains(res.Message, "boom") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.balance(t, ledger.CounterMCP) != 10 || f.balance(t, ledger.CounterPCP) != 0 {
		t.Fatalf("panic rollback did not restore balances")
	}
}

func TestExecuteSubstitutesSecondary(t *testing.T) {
	f := newFixture(t, 0, 6)
	if err := f.registry.Register(costing("decree", ledger.CounterPCP, 3)); err != nil {
		t.Fatalf("register: %v", err)
	}
	res := f.registry.Execute(context.Background(), "decree", ec)
	if !res.Success || !res.Substituted || res.Consumed[ledger.CounterMCP] != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.balance(t, ledger.CounterMCP) != 0 {
		t.Fatalf("expected mcp 0, got %d", f.balance(t, ledger.CounterMCP))
	}
}

func TestExecuteConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, 10, 0)
	if err := f.registry.Register(costing("decree", ledger.CounterPCP, 10)); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.registry.Execute(ctx, "decree", ec)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, res := range results {
		switch {
		case res.Success:
			wins++
		case res.Code == CodeInsufficientResource, res.Code == CodeContention:
		default:
			t.Fatalf("unexpected failure: %+v", res)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one success, got %d", wins)
	}
	if got := f.balance(t, ledger.CounterPCP); got != 0 {
		t.Fatalf("expected pcp 0, got %d", got)
	}
}

func TestCatalogueMaintenance(t *testing.T) {
	f := newFixture(t, 0, 0)
	r := f.registry
	a := Func{Def: Definition{ID: "a", CostType: CostNone, RequiredCapabilities: []string{"navy"}}}
	b := Func{Def: Definition{ID: "b", CostType: ledger.CounterPCP, CostAmount: 1, RequiredCapabilities: []string{"navy", "court"}}}
	if err := r.RegisterAll(b, a); err != nil {
		t.Fatalf("register all: %v", err)
	}

	if defs := r.ByCapability("navy"); len(defs) != 2 || defs[0].ID != "a" || defs[1].ID != "b" {
		t.Fatalf("unexpected navy commands: %+v", defs)
	}
	if def, ok := r.Meta("b"); !ok || def.CostAmount != 1 {
		t.Fatalf("unexpected meta: %+v %v", def, ok)
	}

	b2 := Func{Def: Definition{ID: "b", CostType: ledger.CounterMCP, CostAmount: 2, RequiredCapabilities: []string{"army"}}}
	if err := r.Register(b2); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if defs := r.ByCapability("court"); len(defs) != 0 {
		t.Fatalf("stale capability index: %+v", defs)
	}
	stats := r.Stats()
	if stats.Commands != 2 || stats.ByCostType[ledger.CounterMCP] != 1 || stats.Capabilities["army"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if !r.Unregister("a") || r.Unregister("a") {
		t.Fatalf("unexpected unregister result")
	}
	if all := r.AllMeta(); len(all) != 1 || all[0].ID != "b" {
		t.Fatalf("unexpected catalogue: %+v", all)
	}
	r.Clear()
	if len(r.AllMeta()) != 0 || r.Stats().Commands != 0 {
		t.Fatalf("clear left commands behind")
	}
}

func TestRegisterRejectsInvalidDefinition(t *testing.T) {
	f := newFixture(t, 0, 0)
	if err := f.registry.Register(Func{Def: Definition{}}); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
	if err := f.registry.Register(Func{Def: Definition{ID: "x", CostAmount: 3}}); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}

func TestExecuteUnknownActorAndCounterAreConfigurationErrors(t *testing.T) {
	f := newFixture(t, 5, 5)
	if err := f.registry.RegisterAll(costing("decree", ledger.CounterPCP, 1), costing("mint", "gold", 1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	res := f.registry.Execute(ctx, "decree", ExecContext{SessionID: "s1", ActorID: "ghost"})
	if res.Code != CodeUnknownActor || !errors.Is(res.Err(), ErrUnknownActor) || res.Retryable() {
		t.Fatalf("unexpected result for missing actor: %+v", res)
	}

	res = f.registry.Execute(ctx, "mint", ec)
	if res.Code != CodeUnknownCounter || !errors.Is(res.Err(), ErrUnknownCounter) || res.Retryable() {
		t.Fatalf("unexpected result for missing counter: %+v", res)
	}
	if f.balance(t, ledger.CounterPCP) != 5 || f.balance(t, ledger.CounterMCP) != 5 {
		t.Fatal("configuration failure touched balances")
	}
}
