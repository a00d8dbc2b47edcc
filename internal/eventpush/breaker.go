package eventpush

import (
	"sync"
	"time"
)

// circuitBreaker tracks consecutive delivery failures per target. After
// threshold failures in a row the target is skipped until cooldown passes.
type circuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu      sync.Mutex
	targets map[string]*targetHealth
}

type targetHealth struct {
	failures  int
	openUntil time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, cooldown: cooldown, targets: map[string]*targetHealth{}}
}

// Allow reports whether a send to key may proceed at now.
func (b *circuitBreaker) Allow(key string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.targets[key]
	return !ok || !now.Before(h.openUntil)
}

// Failure records a failed send and reports whether it opened the circuit.
func (b *circuitBreaker) Failure(key string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.targets[key]
	if !ok {
		h = &targetHealth{}
		b.targets[key] = h
	}
	h.failures++
	if h.failures < b.threshold {
		return false
	}
	h.failures = 0
	h.openUntil = now.Add(b.cooldown)
	return true
}

func (b *circuitBreaker) Success(key string) {
	b.mu.Lock()
	delete(b.targets, key)
	b.mu.Unlock()
}
