package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/ledger"
	"galaxy-core/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	defaultAccelerationFactor = 24
	defaultCounterMax         = 24
)

type AdminHandlers struct {
	store  store.Backend
	engine *gameclock.Engine
}

func NewAdminHandlers(st store.Backend, engine *gameclock.Engine) *AdminHandlers {
	return &AdminHandlers{store: st, engine: engine}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

// CreateSession stores a new session and, unless register is false, starts
// ticking it right away.
func (h *AdminHandlers) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TickPeriodMs       int64  `json:"tick_period_ms"`
			AccelerationFactor int64  `json:"acceleration_factor"`
			Epoch              string `json:"epoch"`
			Register           *bool  `json:"register"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.TickPeriodMs == 0 {
			body.TickPeriodMs = h.engine.TickPeriodMs()
		}
		if body.AccelerationFactor == 0 {
			body.AccelerationFactor = defaultAccelerationFactor
		}
		epoch, err := calendar.Parse(strings.TrimSpace(body.Epoch))
		if err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.engine.CheckTimeConfig(body.TickPeriodMs, body.AccelerationFactor); err != nil {
			writeClockError(w, err)
			return
		}
		metricSessionCreateTotal.Add(1)
		sess := &store.GameSession{
			TickPeriodMs:       body.TickPeriodMs,
			AccelerationFactor: body.AccelerationFactor,
			Epoch:              epoch,
		}
		if err := h.store.CreateGameSession(r.Context(), sess); err != nil {
			metricSessionCreateErrors.Add(1)
			log.Error().Err(err).Msg("create session failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if body.Register == nil || *body.Register {
			info, err := h.engine.Register(r.Context(), sess.ID)
			if err != nil {
				metricSessionCreateErrors.Add(1)
				writeClockError(w, err)
				return
			}
			WriteJSON(w, http.StatusCreated, info)
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]any{"sessionId": sess.ID, "status": sess.Status})
	}
}

type counterBody struct {
	Balance int64 `json:"balance"`
	Max     int64 `json:"max"`
}

// CreateActor opens a ledger for an actor in the session. Counters default
// to empty pcp and mcp with the standard cap.
func (h *AdminHandlers) CreateActor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		var body struct {
			ActorID  string                 `json:"actor_id"`
			Counters map[string]counterBody `json:"counters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		body.ActorID = strings.TrimSpace(body.ActorID)
		if body.ActorID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if _, err := h.store.GetGameSession(r.Context(), sessionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "session_not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if len(body.Counters) == 0 {
			body.Counters = map[string]counterBody{
				ledger.CounterPCP: {Max: defaultCounterMax},
				ledger.CounterMCP: {Max: defaultCounterMax},
			}
		}
		l := store.ActorLedger{ActorID: body.ActorID, SessionID: sessionID, Counters: map[string]store.Counter{}}
		for name, c := range body.Counters {
			if c.Max <= 0 || c.Balance < 0 || c.Balance > c.Max {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_counter")
				return
			}
			l.Counters[name] = store.Counter{Name: name, Balance: c.Balance, Max: c.Max}
		}
		if err := h.store.EnsureActorLedger(r.Context(), l); err != nil {
			log.Error().Err(err).Str("actor_id", l.ActorID).Msg("ensure actor ledger failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		led, err := h.store.GetActorLedger(r.Context(), l.ActorID)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		WriteJSON(w, http.StatusCreated, ledgerView(led))
	}
}

func (h *AdminHandlers) ActorLedger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := chi.URLParam(r, "actor_id")
		led, err := h.store.GetActorLedger(r.Context(), actorID)
		if errors.Is(err, store.ErrNotFound) {
			WriteHTTPError(w, http.StatusNotFound, "actor_not_found")
			return
		}
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		limit := ParseLimit(r)
		entries, err := h.store.ListLedgerEntries(r.Context(), actorID, limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		view := ledgerView(led)
		view["entries"] = entries
		view["limit"] = limit
		WriteJSON(w, http.StatusOK, view)
	}
}

func (h *AdminHandlers) FinishSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		var body struct {
			WinnerID string `json:"winner_id"`
			Reason   string `json:"reason"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		if err := h.engine.Finish(r.Context(), sessionID, body.WinnerID, body.Reason); err != nil {
			writeClockError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "sessionId": sessionID})
	}
}

func ledgerView(l *store.ActorLedger) map[string]any {
	counters := make(map[string]any, len(l.Counters))
	for name, c := range l.Counters {
		counters[name] = map[string]any{
			"balance":           c.Balance,
			"max":               c.Max,
			"last_recovered_at": c.LastRecoveredAt,
		}
	}
	return map[string]any{
		"actor_id":   l.ActorID,
		"session_id": l.SessionID,
		"counters":   counters,
	}
}
