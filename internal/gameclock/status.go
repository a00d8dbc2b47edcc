package gameclock

import (
	"fmt"
	"sort"
	"time"

	"galaxy-core/internal/calendar"
)

type SessionInfo struct {
	SessionID          string            `json:"sessionId"`
	Status             string            `json:"status"`
	Tick               int64             `json:"tick"`
	GameDate           calendar.GameDate `json:"gameDate"`
	TickPeriodMs       int64             `json:"tickPeriodMs"`
	AccelerationFactor int64             `json:"accelerationFactor"`
	IsPaused           bool              `json:"isPaused"`
	LastTickTime       time.Time         `json:"lastTickTime"`
	Dirty              bool              `json:"dirty"`
}

type Status struct {
	Running        bool          `json:"running"`
	TickIntervalMs int64         `json:"tickIntervalMs"`
	Firings        int64         `json:"firings"`
	LastFiring     time.Time     `json:"lastFiring,omitzero"`
	Sessions       []SessionInfo `json:"sessions"`
}

func (s *sessionState) info() SessionInfo {
	return SessionInfo{
		SessionID:          s.id,
		Status:             s.status,
		Tick:               s.tick,
		GameDate:           s.date,
		TickPeriodMs:       s.tickPeriodMs,
		AccelerationFactor: s.accel,
		IsPaused:           s.paused,
		LastTickTime:       s.lastTickTime,
		Dirty:              s.dirty,
	}
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := Status{
		Running:        e.running,
		TickIntervalMs: e.opts.TickInterval.Milliseconds(),
		Firings:        e.firings,
		LastFiring:     e.lastFiring,
		Sessions:       make([]SessionInfo, 0, len(e.sessions)),
	}
	for _, st := range e.sessions {
		out.Sessions = append(out.Sessions, st.info())
	}
	sort.Slice(out.Sessions, func(i, j int) bool { return out.Sessions[i].SessionID < out.Sessions[j].SessionID })
	return out
}

func (e *Engine) SessionInfo(sessionID string) (SessionInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.sessions[sessionID]
	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrNotRegistered, sessionID)
	}
	return st.info(), nil
}
