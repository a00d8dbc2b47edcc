package eventpush

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

const maxRetryDelay = time.Minute

var errCircuitOpen = errors.New("circuit_open")

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			metricPushQueueLen.Set(int64(len(m.dispatchCh)))
			m.deliver(ctx, job)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, job pushJob) {
	adapter, ok := m.adapters[job.Target.Platform]
	if !ok {
		metricPushDroppedTotal.Add(1)
		return
	}
	key := job.key()
	if !m.breaker.Allow(key, time.Now()) {
		metricPushCircuitOpenTotal.Add(1)
		m.retryLater(job, errCircuitOpen)
		return
	}
	if err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, job.Message); err != nil {
		metricPushFailedTotal.Add(1)
		if m.breaker.Failure(key, time.Now()) {
			log.Warn().Str("platform", job.Target.Platform).Str("target", key).
				Dur("cooldown", m.cfg.CircuitOpenDuration).Msg("event push circuit opened")
		}
		m.retryLater(job, err)
		return
	}
	metricPushSentTotal.Add(1)
	m.breaker.Success(key)
}

// retryLater re-queues job after an exponential delay, or drops it once
// RetryMax retries have been spent. Pending retries die with the manager.
func (m *Manager) retryLater(job pushJob, cause error) {
	if job.Attempt >= m.cfg.RetryMax {
		metricPushRetryDroppedTotal.Add(1)
		log.Warn().
			Err(cause).
			Str("platform", job.Target.Platform).
			Str("event", job.Event.Event).
			Str("event_id", job.Event.EventID).
			Int("attempts", job.Attempt+1).
			Msg("event push dropped")
		return
	}
	job.Attempt++
	metricPushRetryTotal.Add(1)
	time.AfterFunc(retryDelay(m.cfg.RetryBase, job.Attempt), func() {
		select {
		case <-m.done:
		case m.dispatchCh <- job:
			metricPushQueueLen.Set(int64(len(m.dispatchCh)))
		}
	})
}

// retryDelay doubles base for each attempt after the first, capped at
// maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return min(d, maxRetryDelay)
}
