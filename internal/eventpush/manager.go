// Package eventpush forwards clock and command events from the bus to chat
// and webhook endpoints through a bounded worker pool.
package eventpush

import (
	"context"
	"sync"
	"time"

	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/eventpush/platforms"

	"github.com/rs/zerolog/log"
)

type Manager struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	breaker *circuitBreaker

	dispatchCh chan pushJob
	done       chan struct{}

	mu      sync.Mutex
	started bool
}

func NewManager(cfg Config) *Manager {
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	return &Manager{
		cfg:        cfg,
		adapters:   platforms.Adapters(platforms.NewHTTPClient(cfg.RequestTimeout)),
		breaker:    newCircuitBreaker(cfg.FailureThreshold, cfg.CircuitOpenDuration),
		dispatchCh: make(chan pushJob, cfg.DispatchBuffer),
		done:       make(chan struct{}),
	}
}

func (m *Manager) Enabled() bool {
	return m.cfg.Enabled && len(m.cfg.Targets) > 0
}

// Start launches the workers. They stop when ctx is cancelled, after which
// pending retries are discarded.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		close(m.done)
	}()
	log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("event push started")
	return nil
}

// Attach subscribes the manager to every bus event. The handler only
// enqueues, so publishers never wait on the network.
func (m *Manager) Attach(bus *eventbus.Bus) func() {
	return bus.Handle(m.HandleEvent)
}

func (m *Manager) HandleEvent(ev eventbus.Event) {
	if !m.cfg.Enabled || ev.Event == "" {
		return
	}
	targets := matchTargets(m.cfg.Targets, ev)
	if len(targets) == 0 {
		return
	}
	msg, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		if !m.enqueue(pushJob{Target: target, Event: ev, Message: msg}) {
			metricPushDroppedTotal.Add(1)
		}
	}
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	case m.dispatchCh <- job:
		metricPushQueuedTotal.Add(1)
		metricPushQueueLen.Set(int64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}
