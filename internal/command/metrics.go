package command

import "expvar"

var (
	metricExecutedTotal   = expvar.NewInt("command_executed_total")
	metricFailedTotal     = expvar.NewInt("command_failed_total")
	metricRolledBackTotal = expvar.NewInt("command_rolled_back_total")
	metricPanicsTotal     = expvar.NewInt("command_panics_total")
	metricFailuresByCode  = expvar.NewMap("command_failures_by_code")
)
