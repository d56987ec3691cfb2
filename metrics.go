// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the primary metrics the ledger updates during operation:
//   • ledger_operations_total{op,result} – lifecycle calls (op: offer|accept|complete;
//     result: ok|rejected|error)
//   • ledger_sweep_rows_moved_total      – rows migrated active → completed
//   • ledger_sweep_errors_total          – swallowed sweep failures
//   • ledger_active_rows                 – active-tab row count after the last cleanup
//   • ledger_backend{backend}            – which backend is wired (memory/sheets)
//
// These are registered in init() and served by the HTTP handler started in
// main.go at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Lifecycle operations by outcome",
		},
		[]string{"op", "result"}, // op: offer|accept|complete; result: ok|rejected|error
	)

	mtxSweepMoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_sweep_rows_moved_total",
			Help: "Rows migrated from the active tab to the completed tab",
		},
	)

	mtxSweepErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_sweep_errors_total",
			Help: "Sweep failures swallowed to keep primary operations alive",
		},
	)

	mtxActiveRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_active_rows",
			Help: "Active-tab data rows remaining after the last cleanup pass",
		},
	)

	// ledger_backend exposes two labeled series flipped between 0/1 to keep
	// dashboards simple.
	mtxBackend = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledger_backend",
			Help: "Wired persistence backend (1 = active)",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(mtxOperations, mtxSweepMoved, mtxSweepErrors)
	prometheus.MustRegister(mtxActiveRows, mtxBackend)
}

// Helper setters (used by ledger.go and main.go).

func IncOperation(op, result string) { mtxOperations.WithLabelValues(op, result).Inc() }
func AddSweepMoved(n int)            { mtxSweepMoved.Add(float64(n)) }
func IncSweepError()                 { mtxSweepErrors.Inc() }
func SetActiveRows(n int)            { mtxActiveRows.Set(float64(n)) }

func SetBackendMetric(name string) {
	for _, b := range []string{"memory", "sheets"} {
		v := 0.0
		if b == name {
			v = 1.0
		}
		mtxBackend.WithLabelValues(b).Set(v)
	}
}
