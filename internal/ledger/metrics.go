package ledger

import "expvar"

var (
	metricDebitTotal        = expvar.NewInt("ledger_debit_total")
	metricSubstitutionTotal = expvar.NewInt("ledger_substitution_total")
	metricContentionTotal   = expvar.NewInt("ledger_contention_total")
	metricRefundTotal       = expvar.NewInt("ledger_refund_total")
	metricRefundFailedTotal = expvar.NewInt("ledger_refund_failed_total")
	metricRecoveryTotal     = expvar.NewInt("ledger_recovery_total")
	metricRecoveryErrors    = expvar.NewInt("ledger_recovery_errors_total")
)
