// Package gameclock advances every registered session's in-game calendar on a
// single wall-clock timer and announces tick, day and month transitions.
package gameclock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	defaultTickInterval    = time.Second
	defaultMaxCatchupTicks = 86400
	defaultSyncEveryTicks  = 10
	persistTimeout         = 5 * time.Second
)

type Store interface {
	GetGameSession(ctx context.Context, id string) (*store.GameSession, error)
	SaveSessionClock(ctx context.Context, c store.SessionClock) error
	RecordSessionEnd(ctx context.Context, id, winnerID, reason string) error
}

type Publisher interface {
	Publish(event, sessionID string, data any) eventbus.Event
}

type Options struct {
	TickInterval    time.Duration
	MaxCatchupTicks int64
	// SyncEveryTicks is how many firings pass between writes of dirty
	// sessions to the store.
	SyncEveryTicks int
	Now            func() time.Time
}

type sessionState struct {
	id           string
	status       string
	tickPeriodMs int64
	accel        int64
	epoch        calendar.GameDate
	tick         int64
	date         calendar.GameDate
	paused       bool
	lastTickTime time.Time
	lastDay      calendar.DayKey
	lastMonth    calendar.MonthKey

	dirty   bool
	version int64
}

func (s *sessionState) advance(ticks int64) {
	s.tick += ticks
	s.date = calendar.DateAt(s.epoch, s.tick, s.tickPeriodMs, s.accel)
}

func (s *sessionState) touch() {
	s.dirty = true
	s.version++
}

func (s *sessionState) snapshot() (store.SessionClock, int64) {
	return store.SessionClock{
		SessionID:    s.id,
		Status:       s.status,
		Tick:         s.tick,
		GameDate:     s.date,
		IsPaused:     s.paused,
		LastTickTime: s.lastTickTime,
	}, s.version
}

type pendingEvent struct {
	event     string
	sessionID string
	data      any
}

// Engine owns the tick counter of every registered session.
//
// Register, Tick, Unregister and Finish are serialized against each other,
// so they must not be called from an event handler. Pause, Resume and the
// read-only accessors may be.
//
// Every session ticks on the engine's TickInterval, so a session is only
// accepted when its stored tick period equals that interval; otherwise live
// ticking and catch-up would advance its calendar at different rates.
type Engine struct {
	store Store
	bus   Publisher
	opts  Options

	tickMu sync.Mutex
	// persistMu orders store writes so a write never carries an older
	// snapshot than the one before it.
	persistMu sync.Mutex

	mu         sync.RWMutex
	sessions   map[string]*sessionState
	firings    int64
	lastFiring time.Time
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(st Store, bus Publisher, opts Options) *Engine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.MaxCatchupTicks <= 0 {
		opts.MaxCatchupTicks = defaultMaxCatchupTicks
	}
	if opts.SyncEveryTicks <= 0 {
		opts.SyncEveryTicks = defaultSyncEveryTicks
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:    st,
		bus:      bus,
		opts:     opts,
		sessions: map[string]*sessionState{},
	}
}

// Start runs the timer until ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	ticker := time.NewTicker(e.opts.TickInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
	log.Info().Dur("interval", e.opts.TickInterval).Msg("game clock started")
}

// Register loads a session and brings it up to date with the wall clock.
// Ticks missed while no process was running are applied in one step, capped
// at MaxCatchupTicks, and announced with a single CATCHUP event; no boundary
// events are replayed for them. Registering an already registered session
// returns its current info and changes nothing.
func (e *Engine) Register(ctx context.Context, sessionID string) (SessionInfo, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	e.mu.RLock()
	if st, ok := e.sessions[sessionID]; ok {
		info := st.info()
		e.mu.RUnlock()
		return info, nil
	}
	e.mu.RUnlock()

	sess, err := e.store.GetGameSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if err != nil {
		return SessionInfo{}, err
	}
	if sess.Status == store.SessionFinished {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionFinished, sessionID)
	}
	if err := e.CheckTimeConfig(sess.TickPeriodMs, sess.AccelerationFactor); err != nil {
		return SessionInfo{}, fmt.Errorf("%w: %s", err, sessionID)
	}

	now := e.opts.Now()
	st := &sessionState{
		id:           sess.ID,
		status:       store.SessionRunning,
		tickPeriodMs: sess.TickPeriodMs,
		accel:        sess.AccelerationFactor,
		epoch:        sess.Epoch,
		tick:         sess.Tick,
		paused:       sess.IsPaused,
		lastTickTime: sess.LastTickTime,
	}
	st.advance(0)
	if st.paused {
		st.status = store.SessionPaused
	}
	if st.status != sess.Status {
		st.touch()
	}

	var catchup *CatchupEvent
	if !st.paused {
		period := time.Duration(st.tickPeriodMs) * time.Millisecond
		if elapsed := now.Sub(st.lastTickTime); elapsed >= period {
			missed := int64(elapsed / period)
			applied := min(missed, e.opts.MaxCatchupTicks)
			st.advance(applied)
			st.lastTickTime = now
			st.touch()
			catchup = &CatchupEvent{
				SessionID:   st.id,
				MissedTicks: applied,
				CurrentTick: st.tick,
				GameDate:    st.date,
			}
			metricCatchupTicksTotal.Add(applied)
			log.Info().
				Str("session_id", st.id).
				Int64("missed_ticks", missed).
				Int64("applied_ticks", applied).
				Int64("tick", st.tick).
				Str("game_date", st.date.String()).
				Msg("session caught up")
		}
	}
	st.lastDay = st.date.DayKey()
	st.lastMonth = st.date.MonthKey()

	e.mu.Lock()
	e.sessions[st.id] = st
	info := st.info()
	metricSessionsActive.Set(int64(len(e.sessions)))
	e.mu.Unlock()

	e.bus.Publish(EventSessionStart, st.id, SessionStartEvent{SessionID: st.id})
	if catchup != nil {
		e.bus.Publish(EventCatchup, st.id, *catchup)
	}
	return info, nil
}

// Tick performs one firing: every non-paused session advances by exactly one
// tick, in session id order.
func (e *Engine) Tick(ctx context.Context) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	now := e.opts.Now()
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pending := make([]pendingEvent, 0, len(ids))
	for _, id := range ids {
		st := e.sessions[id]
		if st.paused {
			continue
		}
		st.advance(1)
		st.lastTickTime = now
		st.touch()
		pending = append(pending, pendingEvent{EventTimeTick, id, TickEvent{
			SessionID:          id,
			Tick:               st.tick,
			GameDate:           st.date,
			AccelerationFactor: st.accel,
		}})
		if day := st.date.DayKey(); day != st.lastDay {
			st.lastDay = day
			pending = append(pending, pendingEvent{EventDayStart, id, DayStartEvent{
				SessionID: id,
				Day:       day.Day,
				Month:     day.Month,
				Year:      day.Year,
			}})
		}
		if month := st.date.MonthKey(); month != st.lastMonth {
			st.lastMonth = month
			pending = append(pending, pendingEvent{EventMonthStart, id, MonthStartEvent{
				SessionID: id,
				Month:     month.Month,
				Year:      month.Year,
			}})
		}
	}
	e.firings++
	e.lastFiring = now
	var snaps []dirtySnapshot
	if e.firings%int64(e.opts.SyncEveryTicks) == 0 {
		snaps = e.dirtySnapshotsLocked()
	}
	e.mu.Unlock()

	metricFiringsTotal.Add(1)
	for _, p := range pending {
		switch p.event {
		case EventTimeTick:
			metricTicksTotal.Add(1)
		default:
			metricBoundaryTotal.Add(1)
		}
		e.bus.Publish(p.event, p.sessionID, p.data)
	}
	if len(snaps) > 0 {
		e.persist(ctx, snaps)
	}
}

type dirtySnapshot struct {
	clock   store.SessionClock
	version int64
}

func (e *Engine) dirtySnapshotsLocked() []dirtySnapshot {
	out := make([]dirtySnapshot, 0, len(e.sessions))
	for _, st := range e.sessions {
		if !st.dirty {
			continue
		}
		c, v := st.snapshot()
		out = append(out, dirtySnapshot{clock: c, version: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].clock.SessionID < out[j].clock.SessionID })
	return out
}

// persist writes the sessions named by snaps and clears the dirty flag of
// those that have not changed since the write. Writes are serialized and each
// one takes a fresh snapshot of a still registered session, so a slow sync
// can never land an older state over a newer one such as a pause. Failures
// leave the session dirty so the next sync retries it.
func (e *Engine) persist(ctx context.Context, snaps []dirtySnapshot) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	for _, snap := range snaps {
		e.mu.RLock()
		if st, ok := e.sessions[snap.clock.SessionID]; ok {
			snap.clock, snap.version = st.snapshot()
		}
		e.mu.RUnlock()
		err := e.store.SaveSessionClock(ctx, snap.clock)
		metricSyncTotal.Add(1)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrStaleClock):
			log.Warn().
				Str("session_id", snap.clock.SessionID).
				Int64("tick", snap.clock.Tick).
				Msg("stored clock is ahead; skipping write")
		default:
			metricSyncErrorsTotal.Add(1)
			log.Error().
				Err(err).
				Str("session_id", snap.clock.SessionID).
				Int64("tick", snap.clock.Tick).
				Msg("session clock sync failed")
			continue
		}
		e.mu.Lock()
		if st, ok := e.sessions[snap.clock.SessionID]; ok && st.version == snap.version {
			st.dirty = false
		}
		e.mu.Unlock()
	}
}

// TickPeriodMs is the only tick period sessions may use with this engine.
func (e *Engine) TickPeriodMs() int64 {
	return e.opts.TickInterval.Milliseconds()
}

// CheckTimeConfig reports ErrInvalidTimeConfig unless the period matches the
// engine's timer and the acceleration factor is positive.
func (e *Engine) CheckTimeConfig(tickPeriodMs, accel int64) error {
	if accel <= 0 || tickPeriodMs <= 0 || tickPeriodMs != e.TickPeriodMs() {
		return ErrInvalidTimeConfig
	}
	return nil
}

// Flush writes every dirty session now.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	snaps := e.dirtySnapshotsLocked()
	e.mu.Unlock()
	e.persist(ctx, snaps)
}

func (e *Engine) Pause(ctx context.Context, sessionID string) (SessionInfo, error) {
	return e.setPaused(ctx, sessionID, true)
}

// Resume restarts ticking from now, so the paused interval is never treated
// as downtime by a later catch-up.
func (e *Engine) Resume(ctx context.Context, sessionID string) (SessionInfo, error) {
	return e.setPaused(ctx, sessionID, false)
}

func (e *Engine) setPaused(ctx context.Context, sessionID string, paused bool) (SessionInfo, error) {
	e.mu.Lock()
	st, ok := e.sessions[sessionID]
	if !ok {
		e.mu.Unlock()
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrNotRegistered, sessionID)
	}
	if st.paused == paused {
		info := st.info()
		e.mu.Unlock()
		return info, nil
	}
	st.paused = paused
	if paused {
		st.status = store.SessionPaused
	} else {
		st.status = store.SessionRunning
		st.lastTickTime = e.opts.Now()
	}
	st.touch()
	c, v := st.snapshot()
	info := st.info()
	e.mu.Unlock()

	e.persist(ctx, []dirtySnapshot{{clock: c, version: v}})
	log.Info().Str("session_id", sessionID).Bool("paused", paused).Int64("tick", info.Tick).Msg("session pause toggled")
	return info, nil
}

// Unregister flushes the session's pending state and stops ticking it. If
// the flush fails the session stays registered.
func (e *Engine) Unregister(ctx context.Context, sessionID string) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	c, dirty, err := e.current(sessionID)
	if err != nil {
		return err
	}
	if dirty {
		if err := e.save(ctx, c); err != nil {
			return err
		}
	}
	_, err = e.remove(sessionID)
	return err
}

// Finish ends a session: its clock is flushed, it is stored as finished,
// stops ticking, and SESSION_END is published. Nothing changes in memory
// unless both writes succeed, and no TIME_TICK for the session can follow
// its SESSION_END.
func (e *Engine) Finish(ctx context.Context, sessionID, winnerID, reason string) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	c, _, err := e.current(sessionID)
	if err != nil {
		return err
	}
	if err := e.save(ctx, c); err != nil {
		return err
	}
	if err := e.store.RecordSessionEnd(ctx, sessionID, winnerID, reason); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("record session end failed")
		return err
	}
	if _, err := e.remove(sessionID); err != nil {
		return err
	}
	e.bus.Publish(EventSessionEnd, sessionID, SessionEndEvent{
		SessionID: sessionID,
		WinnerID:  winnerID,
		Reason:    reason,
	})
	log.Info().Str("session_id", sessionID).Str("winner_id", winnerID).Str("reason", reason).Msg("session finished")
	return nil
}

func (e *Engine) current(sessionID string) (store.SessionClock, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.sessions[sessionID]
	if !ok {
		return store.SessionClock{}, false, fmt.Errorf("%w: %s", ErrNotRegistered, sessionID)
	}
	c, _ := st.snapshot()
	return c, st.dirty, nil
}

func (e *Engine) remove(sessionID string) (*sessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, sessionID)
	}
	delete(e.sessions, sessionID)
	metricSessionsActive.Set(int64(len(e.sessions)))
	return st, nil
}

func (e *Engine) save(ctx context.Context, c store.SessionClock) error {
	e.persistMu.Lock()
	err := e.store.SaveSessionClock(ctx, c)
	e.persistMu.Unlock()
	if errors.Is(err, store.ErrStaleClock) {
		return nil
	}
	if err != nil {
		metricSyncErrorsTotal.Add(1)
		log.Error().Err(err).Str("session_id", c.SessionID).Int64("tick", c.Tick).Msg("session clock flush failed")
	}
	return err
}

// Stop halts the timer, flushes every dirty session and drops all state.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.running = false
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	e.Flush(ctx)
	e.mu.Lock()
	e.sessions = map[string]*sessionState{}
	metricSessionsActive.Set(0)
	e.mu.Unlock()
	log.Info().Msg("game clock stopped")
}
