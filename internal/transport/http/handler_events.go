package httptransport

import (
	"net/http"
	"time"

	"galaxy-core/internal/eventbus"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

// EventsSSEHandler relays bus events to the client. ?session_id= narrows the
// stream to one session; Last-Event-ID replays what the ring still holds.
func EventsSSEHandler(bus *eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		sessionID := r.URL.Query().Get("session_id")
		wants := func(ev eventbus.Event) bool {
			return sessionID == "" || ev.SessionID == sessionID
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		setSSEHeaders(w)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("session_id", sessionID).
			Msg("sse stream opened")

		lastSent := r.Header.Get("Last-Event-ID")
		if lastSent != "" {
			for _, ev := range bus.ReplayAfter(lastSent) {
				lastSent = ev.EventID
				if !wants(ev) {
					continue
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				logSSEEvent(r, "replay", ev)
			}
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Err(r.Context().Err()).
					Msg("sse stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if !wants(ev) || !after(ev.EventID, lastSent) {
					continue
				}
				if err := writeSSE(w, ev); err != nil {
					return
				}
				logSSEEvent(r, "live", ev)
				flusher.Flush()
			case <-ticker.C:
				if err := writePing(w, time.Now().UnixMilli()); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// after reports whether id is newer than ref. Bus ids are decimal and grow
// monotonically, so a longer id is always newer.
func after(id, ref string) bool {
	if ref == "" {
		return true
	}
	if len(id) != len(ref) {
		return len(id) > len(ref)
	}
	return id > ref
}

func logSSEEvent(r *http.Request, source string, ev eventbus.Event) {
	log.Debug().
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("session_id", ev.SessionID).
		Str("event", ev.Event).
		Str("event_id", ev.EventID).
		Str("source", source).
		Msg("sse event sent")
}
