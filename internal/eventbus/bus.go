// Package eventbus is the process-wide channel that carries clock and command
// lifecycle events to any number of in-process subscribers.
package eventbus

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultReplaySize = 500
	watcherBuffer     = 64
)

type Event struct {
	EventID   string `json:"event_id"`
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	ServerTS  int64  `json:"server_ts"`
	Data      any    `json:"data"`
}

// Handler is invoked synchronously from Publish, after channel watchers have
// been offered the event.
type Handler func(Event)

type handlerEntry struct {
	id     int64
	filter map[string]struct{}
	fn     Handler
}

type Bus struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []Event
	watchers map[chan Event]struct{}
	handlers []handlerEntry
	nextHID  int64
	closed   bool
	dropped  int64
	now      func() time.Time
}

func New(replaySize int) *Bus {
	if replaySize <= 0 {
		replaySize = defaultReplaySize
	}
	return &Bus{
		max:      replaySize,
		watchers: map[chan Event]struct{}{},
		now:      time.Now,
	}
}

func (b *Bus) Publish(event, sessionID string, data any) Event {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Event{}
	}
	b.nextID++
	ev := Event{
		EventID:   strconv.FormatInt(b.nextID, 10),
		Event:     event,
		SessionID: sessionID,
		ServerTS:  b.now().UnixMilli(),
		Data:      data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
			b.dropped++
			metricEventsDropped.Add(1)
		}
	}
	handlers := make([]handlerEntry, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	metricEventsPublished.Add(1)
	for _, h := range handlers {
		if h.filter != nil {
			if _, ok := h.filter[event]; !ok {
				continue
			}
		}
		invoke(h.fn, ev)
	}
	return ev
}

func invoke(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metricHandlerPanics.Add(1)
			log.Error().
				Interface("panic", r).
				Str("event", ev.Event).
				Str("session_id", ev.SessionID).
				Msg("event handler panicked")
		}
	}()
	fn(ev)
}

// Handle registers fn for the given event names, or for every event when none
// are given. The returned func removes the handler.
func (b *Bus) Handle(fn Handler, events ...string) func() {
	var filter map[string]struct{}
	if len(events) > 0 {
		filter = make(map[string]struct{}, len(events))
		for _, e := range events {
			filter[e] = struct{}{}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHID++
	id := b.nextHID
	b.handlers = append(b.handlers, handlerEntry{id: id, filter: filter, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, h := range b.handlers {
			if h.id == id {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) ReplayAfter(lastEventID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		out := make([]Event, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]Event, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe returns a buffered channel that receives every event published
// after the call. Slow readers lose events rather than stall publishers.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, watcherBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.handlers = nil
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
