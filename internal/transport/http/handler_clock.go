package httptransport

import (
	"context"
	"errors"
	"net/http"

	"galaxy-core/internal/gameclock"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type ClockHandlers struct {
	engine *gameclock.Engine
}

func NewClockHandlers(engine *gameclock.Engine) *ClockHandlers {
	return &ClockHandlers{engine: engine}
}

func (h *ClockHandlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, h.engine.Status())
	}
}

func (h *ClockHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := h.engine.SessionInfo(chi.URLParam(r, "session_id"))
		if err != nil {
			writeClockError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

func (h *ClockHandlers) Register() http.HandlerFunc {
	return h.sessionOp(h.engine.Register)
}

func (h *ClockHandlers) Pause() http.HandlerFunc {
	return h.sessionOp(h.engine.Pause)
}

func (h *ClockHandlers) Resume() http.HandlerFunc {
	return h.sessionOp(h.engine.Resume)
}

func (h *ClockHandlers) sessionOp(op func(context.Context, string) (gameclock.SessionInfo, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := op(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeClockError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

func writeClockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gameclock.ErrUnknownSession):
		WriteHTTPError(w, http.StatusNotFound, "session_not_found")
	case errors.Is(err, gameclock.ErrNotRegistered):
		WriteHTTPError(w, http.StatusNotFound, "session_not_registered")
	case errors.Is(err, gameclock.ErrSessionFinished):
		WriteHTTPError(w, http.StatusConflict, "session_finished")
	case errors.Is(err, gameclock.ErrInvalidTimeConfig):
		WriteHTTPError(w, http.StatusUnprocessableEntity, "invalid_time_config")
	default:
		log.Error().Err(err).Msg("clock operation failed")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
