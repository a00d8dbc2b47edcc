package eventbus

import "expvar"

var (
	metricEventsPublished = expvar.NewInt("eventbus_published_total")
	metricEventsDropped   = expvar.NewInt("eventbus_dropped_total")
	metricHandlerPanics   = expvar.NewInt("eventbus_handler_panics_total")
)
