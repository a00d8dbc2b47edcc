package gameclock

import "expvar"

var (
	metricFiringsTotal      = expvar.NewInt("clock_firings_total")
	metricTicksTotal        = expvar.NewInt("clock_session_ticks_total")
	metricCatchupTicksTotal = expvar.NewInt("clock_catchup_ticks_total")
	metricBoundaryTotal     = expvar.NewInt("clock_boundary_events_total")
	metricSyncTotal         = expvar.NewInt("clock_sync_total")
	metricSyncErrorsTotal   = expvar.NewInt("clock_sync_errors_total")
	metricSessionsActive    = expvar.NewInt("clock_sessions_active")
)
