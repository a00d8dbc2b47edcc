// Package memory is an in-process persistence adapter. Each actor ledger has
// its own lock, so contention on one actor never blocks another.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/store"
)

type actorLedger struct {
	mu      sync.Mutex
	ledger  store.ActorLedger
	entries []store.LedgerEntry
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]store.GameSession
	actors   map[string]*actorLedger

	failMu    sync.Mutex
	failSaves error
	now       func() time.Time
}

func New() *Store {
	return &Store{
		sessions: map[string]store.GameSession{},
		actors:   map[string]*actorLedger{},
		now:      time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// FailSaves makes SaveSessionClock return err until called again with nil.
func (s *Store) FailSaves(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failSaves = err
}

func (s *Store) CreateGameSession(_ context.Context, sess *store.GameSession) error {
	now := s.now()
	store.PrepareSession(sess, now)
	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetGameSession(_ context.Context, id string) (*store.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sess.GameDate = calendar.DateAt(sess.Epoch, sess.Tick, sess.TickPeriodMs, sess.AccelerationFactor)
	return &sess, nil
}

func (s *Store) SaveSessionClock(_ context.Context, c store.SessionClock) error {
	s.failMu.Lock()
	failErr := s.failSaves
	s.failMu.Unlock()
	if failErr != nil {
		return failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[c.SessionID]
	if !ok {
		return store.ErrNotFound
	}
	if sess.Tick > c.Tick {
		return store.ErrStaleClock
	}
	sess.Tick = c.Tick
	sess.GameDate = c.GameDate
	sess.IsPaused = c.IsPaused
	sess.LastTickTime = c.LastTickTime
	sess.Status = c.Status
	sess.UpdatedAt = s.now()
	s.sessions[c.SessionID] = sess
	return nil
}

func (s *Store) RecordSessionEnd(_ context.Context, id, winnerID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Status = store.SessionFinished
	sess.WinnerID = winnerID
	sess.EndReason = reason
	sess.UpdatedAt = s.now()
	s.sessions[id] = sess
	return nil
}

func (s *Store) EnsureActorLedger(_ context.Context, l store.ActorLedger) error {
	s.mu.Lock()
	a := s.actors[l.ActorID]
	if a == nil {
		a = &actorLedger{ledger: store.ActorLedger{
			ActorID:   l.ActorID,
			SessionID: l.SessionID,
			Counters:  map[string]store.Counter{},
		}}
		s.actors[l.ActorID] = a
	}
	s.mu.Unlock()

	now := s.now()
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, c := range l.Counters {
		if _, exists := a.ledger.Counters[name]; exists {
			continue
		}
		c.Name = name
		if c.LastRecoveredAt.IsZero() {
			c.LastRecoveredAt = now
		}
		a.ledger.Counters[name] = c
	}
	return nil
}

func (s *Store) actor(actorID string) *actorLedger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actors[actorID]
}

func (s *Store) GetActorLedger(_ context.Context, actorID string) (*store.ActorLedger, error) {
	a := s.actor(actorID)
	if a == nil {
		return nil, store.ErrNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := store.ActorLedger{
		ActorID:   a.ledger.ActorID,
		SessionID: a.ledger.SessionID,
		Counters:  make(map[string]store.Counter, len(a.ledger.Counters)),
	}
	for k, v := range a.ledger.Counters {
		out.Counters[k] = v
	}
	return &out, nil
}

func (s *Store) SwapCounters(_ context.Context, actorID string, swaps []store.CounterSwap, meta store.EntryMeta) (bool, error) {
	if len(swaps) == 0 {
		return false, store.ErrEmptySwap
	}
	a := s.actor(actorID)
	if a == nil {
		return false, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sw := range swaps {
		c, ok := a.ledger.Counters[sw.Counter]
		if !ok || c.Balance != sw.Expected || sw.Next < 0 || sw.Next > c.Max {
			return false, nil
		}
	}
	now := s.now()
	for _, sw := range swaps {
		c := a.ledger.Counters[sw.Counter]
		c.Balance = sw.Next
		a.ledger.Counters[sw.Counter] = c
		a.appendEntry(sw.Counter, sw.Next-sw.Expected, meta, now)
	}
	return true, nil
}

func (s *Store) CreditCounters(_ context.Context, actorID string, credits []store.CounterCredit, meta store.EntryMeta) (map[string]int64, error) {
	a := s.actor(actorID)
	if a == nil {
		return nil, store.ErrNotFound
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, cr := range credits {
		if cr.Amount < 0 {
			return nil, store.ErrInvalidAmount
		}
		if _, ok := a.ledger.Counters[cr.Counter]; !ok {
			return nil, store.ErrNotFound
		}
	}
	now := s.now()
	out := make(map[string]int64, len(credits))
	for _, cr := range credits {
		c := a.ledger.Counters[cr.Counter]
		c.Balance = min(c.Max, c.Balance+cr.Amount)
		a.ledger.Counters[cr.Counter] = c
		a.appendEntry(cr.Counter, cr.Amount, meta, now)
		out[cr.Counter] = c.Balance
	}
	return out, nil
}

func (s *Store) RecoverSessionCounters(_ context.Context, sessionID string, amount int64, at time.Time) (int64, error) {
	if amount < 0 {
		return 0, store.ErrInvalidAmount
	}
	s.mu.RLock()
	actors := make([]*actorLedger, 0, len(s.actors))
	for _, a := range s.actors {
		actors = append(actors, a)
	}
	s.mu.RUnlock()

	var n int64
	for _, a := range actors {
		a.mu.Lock()
		if a.ledger.SessionID == sessionID {
			for name, c := range a.ledger.Counters {
				c.Balance = min(c.Max, c.Balance+amount)
				c.LastRecoveredAt = at
				a.ledger.Counters[name] = c
				n++
			}
		}
		a.mu.Unlock()
	}
	return n, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, actorID string, limit int) ([]store.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	a := s.actor(actorID)
	if a == nil {
		return []store.LedgerEntry{}, nil
	}
	a.mu.Lock()
	out := make([]store.LedgerEntry, len(a.entries))
	copy(out, a.entries)
	a.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *actorLedger) appendEntry(counter string, amount int64, meta store.EntryMeta, now time.Time) {
	a.entries = append(a.entries, store.LedgerEntry{
		ID:        store.NewID(),
		ActorID:   a.ledger.ActorID,
		Counter:   counter,
		Type:      meta.Type,
		Amount:    amount,
		RefType:   meta.RefType,
		RefID:     meta.RefID,
		CreatedAt: now,
	})
}

var _ store.Backend = (*Store)(nil)
