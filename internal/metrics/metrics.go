package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// LedgerOperationsTotal counts mutating ledger operations by outcome.
	LedgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total ledger operations",
		},
		[]string{"operation", "result"}, // result: ok|invalid_state|insufficient_balance|validation|error
	)

	// BalanceDriftTotal counts wallets where the reconcile job found the
	// stored balances disagreeing with the entry log. Any nonzero value is
	// a bug.
	BalanceDriftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_balance_drift_total",
			Help: "Total reconciliation runs that detected balance drift",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(HTTPLatency)
	prometheus.MustRegister(LedgerOperationsTotal)
	prometheus.MustRegister(BalanceDriftTotal)
}
