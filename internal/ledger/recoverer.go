package ledger

import (
	"context"
	"time"

	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/gameclock"

	"github.com/rs/zerolog/log"
)

const (
	recoveryQueueSize = 256
	recoveryTimeout   = 5 * time.Second
)

type RecovererOptions struct {
	EveryTicks int64
	Amount     int64
	Now        func() time.Time
}

type recoveryJob struct {
	sessionID string
	tick      int64
}

// Recoverer refills every counter of a session's actors on a fixed tick
// cadence. Tick handlers only enqueue; the store is written from Run so a
// slow database never stalls the clock.
type Recoverer struct {
	store  Store
	every  int64
	amount int64
	now    func() time.Time
	jobs   chan recoveryJob
}

func NewRecoverer(st Store, opts RecovererOptions) *Recoverer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recoverer{
		store:  st,
		every:  opts.EveryTicks,
		amount: opts.Amount,
		now:    opts.Now,
		jobs:   make(chan recoveryJob, recoveryQueueSize),
	}
}

func (r *Recoverer) Enabled() bool {
	return r.every > 0 && r.amount > 0
}

// Attach subscribes to TIME_TICK. The returned func detaches.
func (r *Recoverer) Attach(bus *eventbus.Bus) func() {
	if !r.Enabled() {
		return func() {}
	}
	return bus.Handle(r.onTick, gameclock.EventTimeTick)
}

func (r *Recoverer) onTick(ev eventbus.Event) {
	tick, ok := ev.Data.(gameclock.TickEvent)
	if !ok || tick.Tick <= 0 || tick.Tick%r.every != 0 {
		return
	}
	select {
	case r.jobs <- recoveryJob{sessionID: tick.SessionID, tick: tick.Tick}:
	default:
		metricRecoveryErrors.Add(1)
		log.Warn().Str("session_id", tick.SessionID).Int64("tick", tick.Tick).Msg("recovery queue full; skipping")
	}
}

// Run processes queued recoveries until ctx is done.
func (r *Recoverer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			r.Recover(ctx, job.sessionID, job.tick)
		}
	}
}

func (r *Recoverer) Recover(ctx context.Context, sessionID string, tick int64) {
	ctx, cancel := context.WithTimeout(ctx, recoveryTimeout)
	defer cancel()
	n, err := r.store.RecoverSessionCounters(ctx, sessionID, r.amount, r.now())
	if err != nil {
		metricRecoveryErrors.Add(1)
		log.Error().Err(err).Str("session_id", sessionID).Int64("tick", tick).Msg("counter recovery failed")
		return
	}
	metricRecoveryTotal.Add(n)
	log.Debug().Str("session_id", sessionID).Int64("tick", tick).Int64("counters", n).Msg("counters recovered")
}
