// Package ledger spends and restores an actor's command points. Every debit
// is a compare-and-swap against the backing store; nothing here holds a lock
// across a read and the write that depends on it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"galaxy-core/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	CounterPCP = "pcp"
	CounterMCP = "mcp"

	CostNone = "none"
	CostBoth = "both"

	EntryCommandDebit  = "command_debit"
	EntryCommandRefund = "command_refund"
	EntryRecovery      = "recovery_credit"

	defaultAttempts = 3
	defaultPenalty  = 2
)

var (
	ErrInsufficient   = errors.New("insufficient_resource")
	ErrContention     = errors.New("ledger_contention")
	ErrLedgerNotFound = errors.New("ledger_not_found")
	ErrUnknownCounter = errors.New("unknown_counter")
)

type Store interface {
	GetActorLedger(ctx context.Context, actorID string) (*store.ActorLedger, error)
	SwapCounters(ctx context.Context, actorID string, swaps []store.CounterSwap, meta store.EntryMeta) (bool, error)
	CreditCounters(ctx context.Context, actorID string, credits []store.CounterCredit, meta store.EntryMeta) (map[string]int64, error)
	RecoverSessionCounters(ctx context.Context, sessionID string, amount int64, at time.Time) (int64, error)
}

// InsufficientError names what the charge needed and what the actor held.
// When a substitute counter was considered its figures are included too.
type InsufficientError struct {
	Counter  string
	Required int64
	Held     int64

	Substitute         string
	SubstituteRequired int64
	SubstituteHeld     int64
}

func (e *InsufficientError) Error() string {
	msg := fmt.Sprintf("insufficient %s: required %d, held %d", e.Counter, e.Required, e.Held)
	if e.Substitute != "" {
		msg += fmt.Sprintf(" (%s: required %d, held %d)", e.Substitute, e.SubstituteRequired, e.SubstituteHeld)
	}
	return msg
}

func (e *InsufficientError) Unwrap() error {
	return ErrInsufficient
}

type Charge struct {
	ActorID  string
	CostType string
	Amount   int64
	RefType  string
	RefID    string
}

// Debit records what a successful charge actually took, per counter, so a
// refund can restore exactly that.
type Debit struct {
	ActorID     string
	Amounts     map[string]int64
	Substituted bool
	RefType     string
	RefID       string
}

func (d Debit) Empty() bool {
	for _, v := range d.Amounts {
		if v > 0 {
			return false
		}
	}
	return true
}

type Options struct {
	// Attempts bounds how many times a lost compare-and-swap is re-read and
	// retried before ErrContention is returned.
	Attempts int
	// Penalty multiplies the cost when a substitute counter pays.
	Penalty int64
	// Substitutes maps a primary counter to the counter that may pay for it.
	Substitutes map[string]string
	// BothCounters are the counters charged by a "both" cost type.
	BothCounters []string
}

type Ledger struct {
	store       Store
	attempts    int
	penalty     int64
	substitutes map[string]string
	both        []string
}

func New(st Store, opts Options) *Ledger {
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Penalty <= 0 {
		opts.Penalty = defaultPenalty
	}
	if opts.Substitutes == nil {
		opts.Substitutes = map[string]string{CounterPCP: CounterMCP, CounterMCP: CounterPCP}
	}
	if len(opts.BothCounters) == 0 {
		opts.BothCounters = []string{CounterPCP, CounterMCP}
	}
	return &Ledger{
		store:       st,
		attempts:    opts.Attempts,
		penalty:     opts.Penalty,
		substitutes: opts.Substitutes,
		both:        opts.BothCounters,
	}
}

func (l *Ledger) Get(ctx context.Context, actorID string) (*store.ActorLedger, error) {
	led, err := l.store.GetActorLedger(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLedgerNotFound
	}
	return led, err
}

// Debit takes c.Amount from the counter named by c.CostType. A lost race is
// re-read and retried up to Attempts times; if the balance was drained in the
// meantime the retry reports insufficiency instead of contention.
func (l *Ledger) Debit(ctx context.Context, c Charge) (Debit, error) {
	out := Debit{ActorID: c.ActorID, RefType: c.RefType, RefID: c.RefID}
	if c.CostType == CostNone || c.CostType == "" || c.Amount <= 0 {
		return out, nil
	}
	meta := store.EntryMeta{Type: EntryCommandDebit, RefType: c.RefType, RefID: c.RefID}
	for attempt := 0; attempt < l.attempts; attempt++ {
		led, err := l.Get(ctx, c.ActorID)
		if err != nil {
			return out, err
		}
		swaps, substituted, err := l.plan(led, c)
		if err != nil {
			return out, err
		}
		ok, err := l.store.SwapCounters(ctx, c.ActorID, swaps, meta)
		if err != nil {
			return out, err
		}
		if ok {
			out.Amounts = make(map[string]int64, len(swaps))
			for _, sw := range swaps {
				out.Amounts[sw.Counter] = sw.Expected - sw.Next
			}
			out.Substituted = substituted
			metricDebitTotal.Add(1)
			if substituted {
				metricSubstitutionTotal.Add(1)
			}
			return out, nil
		}
		metricContentionTotal.Add(1)
		log.Debug().
			Str("actor_id", c.ActorID).
			Str("cost_type", c.CostType).
			Int("attempt", attempt+1).
			Msg("ledger swap lost race")
	}
	return out, ErrContention
}

func (l *Ledger) plan(led *store.ActorLedger, c Charge) ([]store.CounterSwap, bool, error) {
	if c.CostType == CostBoth {
		swaps := make([]store.CounterSwap, 0, len(l.both))
		for _, name := range l.both {
			counter, ok := led.Counters[name]
			if !ok {
				return nil, false, fmt.Errorf("%w: %s", ErrUnknownCounter, name)
			}
			if counter.Balance < c.Amount {
				return nil, false, &InsufficientError{Counter: name, Required: c.Amount, Held: counter.Balance}
			}
			swaps = append(swaps, store.CounterSwap{Counter: name, Expected: counter.Balance, Next: counter.Balance - c.Amount})
		}
		return swaps, false, nil
	}

	primary, ok := led.Counters[c.CostType]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownCounter, c.CostType)
	}
	if primary.Balance >= c.Amount {
		return []store.CounterSwap{{Counter: c.CostType, Expected: primary.Balance, Next: primary.Balance - c.Amount}}, false, nil
	}
	insufficient := &InsufficientError{Counter: c.CostType, Required: c.Amount, Held: primary.Balance}
	subName := l.substitutes[c.CostType]
	sub, ok := led.Counters[subName]
	if subName == "" || !ok {
		return nil, false, insufficient
	}
	cost := c.Amount * l.penalty
	if sub.Balance < cost {
		insufficient.Substitute = subName
		insufficient.SubstituteRequired = cost
		insufficient.SubstituteHeld = sub.Balance
		return nil, false, insufficient
	}
	return []store.CounterSwap{{Counter: subName, Expected: sub.Balance, Next: sub.Balance - cost}}, true, nil
}

// Refund credits back exactly what d took. Store errors are retried because
// a lost refund would leave the actor charged for a command that never ran.
func (l *Ledger) Refund(ctx context.Context, d Debit) error {
	if d.Empty() {
		return nil
	}
	credits := make([]store.CounterCredit, 0, len(d.Amounts))
	for name, amt := range d.Amounts {
		if amt > 0 {
			credits = append(credits, store.CounterCredit{Counter: name, Amount: amt})
		}
	}
	meta := store.EntryMeta{Type: EntryCommandRefund, RefType: d.RefType, RefID: d.RefID}
	var err error
	for attempt := 0; attempt < l.attempts; attempt++ {
		if _, err = l.store.CreditCounters(ctx, d.ActorID, credits, meta); err == nil {
			metricRefundTotal.Add(1)
			return nil
		}
		if errors.Is(err, store.ErrNotFound) || ctx.Err() != nil {
			break
		}
	}
	metricRefundFailedTotal.Add(1)
	log.Error().
		Err(err).
		Str("actor_id", d.ActorID).
		Str("ref_id", d.RefID).
		Interface("amounts", d.Amounts).
		Msg("ledger refund failed")
	return err
}
