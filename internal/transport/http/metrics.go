package httptransport

import "expvar"

var (
	metricCommandRequestsTotal = expvar.NewInt("http_command_requests_total")
	metricCommandRequestErrors = expvar.NewInt("http_command_request_errors_total")

	metricSessionCreateTotal  = expvar.NewInt("session_create_total")
	metricSessionCreateErrors = expvar.NewInt("session_create_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("sse_connections_active")
)
