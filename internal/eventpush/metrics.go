package eventpush

import "expvar"

var (
	metricPushQueuedTotal       = expvar.NewInt("event_push_queued_total")
	metricPushDroppedTotal      = expvar.NewInt("event_push_dropped_total")
	metricPushRetryTotal        = expvar.NewInt("event_push_retry_total")
	metricPushRetryDroppedTotal = expvar.NewInt("event_push_retry_dropped_total")
	metricPushSentTotal         = expvar.NewInt("event_push_sent_total")
	metricPushFailedTotal       = expvar.NewInt("event_push_failed_total")
	metricPushCircuitOpenTotal  = expvar.NewInt("event_push_circuit_open_total")
	metricPushQueueLen          = expvar.NewInt("event_push_queue_len")
)
