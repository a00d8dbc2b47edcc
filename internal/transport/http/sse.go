package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"galaxy-core/internal/eventbus"
)

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// writeSSE writes ev as a single frame: optional id, the event name, and the
// JSON envelope on one data line.
func writeSSE(w io.Writer, ev eventbus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var frame bytes.Buffer
	if ev.EventID != "" {
		frame.WriteString("id: " + ev.EventID + "\n")
	}
	frame.WriteString("event: " + ev.Event + "\n")
	frame.WriteString("data: ")
	frame.Write(data)
	frame.WriteString("\n\n")
	_, err = w.Write(frame.Bytes())
	return err
}

// writePing writes an SSE comment. Clients ignore it; proxies see traffic.
func writePing(w io.Writer, ts int64) error {
	_, err := io.WriteString(w, ": ping "+strconv.FormatInt(ts, 10)+"\n\n")
	return err
}
