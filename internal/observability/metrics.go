// Package observability provides Prometheus metrics for backtest runs.
//
// A CLI run has no scrape endpoint, so metrics are written in the node-exporter
// textfile format at the end of a run (see WriteTextfile).
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vnEquityBot/internal/domain"
)

const metricsNamespace = "vnequitybot"

const backtestSubsystem = "backtest"

// Metrics holds the counters and gauges updated by the backtest engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// DaysSimulated counts simulated calendar days.
	DaysSimulated prometheus.Counter

	// TradesTotal counts closed trades.
	// Labels: exit_reason
	TradesTotal *prometheus.CounterVec

	// EntriesSkipped counts qualifying entries that were not taken.
	// Labels: reason
	EntriesSkipped *prometheus.CounterVec

	// DiagnosticsTotal counts non-fatal problems.
	// Labels: kind
	DiagnosticsTotal *prometheus.CounterVec

	// RunDurationSeconds measures wall time per backtest run.
	// Labels: status (success, error)
	RunDurationSeconds *prometheus.HistogramVec

	// Equity is the most recent end-of-day portfolio equity.
	Equity prometheus.Gauge
}

// NewMetrics creates and registers all metrics on reg. Passing a fresh registry per
// run keeps parallel optimizer runs from colliding.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		DaysSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backtestSubsystem,
			Name:      "days_simulated_total",
			Help:      "Total number of simulated trading days",
		}),
		TradesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backtestSubsystem,
			Name:      "trades_total",
			Help:      "Total closed trades by exit reason",
		}, []string{"exit_reason"}),
		EntriesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backtestSubsystem,
			Name:      "entries_skipped_total",
			Help:      "Qualifying entries not taken, by reason",
		}, []string{"reason"}),
		DiagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backtestSubsystem,
			Name:      "diagnostics_total",
			Help:      "Non-fatal problems recorded during simulation, by kind",
		}, []string{"kind"}),
		RunDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: backtestSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a backtest run in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		Equity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: backtestSubsystem,
			Name:      "equity",
			Help:      "End-of-day portfolio equity of the latest simulated day",
		}),
	}
}

// RecordDay marks one simulated day and its closing equity.
func (m *Metrics) RecordDay(equity float64) {
	if m == nil {
		return
	}
	m.DaysSimulated.Inc()
	m.Equity.Set(equity)
}

// RecordTrade counts a closed trade.
func (m *Metrics) RecordTrade(reason domain.ExitReason) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(string(reason)).Inc()
}

// RecordSkip counts an entry that was not taken.
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.EntriesSkipped.WithLabelValues(reason).Inc()
}

// RecordDiagnostic counts a non-fatal problem.
func (m *Metrics) RecordDiagnostic(kind domain.DiagnosticKind) {
	if m == nil {
		return
	}
	m.DiagnosticsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunDurationSeconds.WithLabelValues(status).Observe(d.Seconds())
}

// WriteTextfile writes all registered metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
