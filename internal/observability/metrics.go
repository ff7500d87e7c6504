// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	BarsSimulated     *prometheus.CounterVec
	Rebalances        *prometheus.CounterVec
	Liquidations      *prometheus.CounterVec
	DroppedAssets     *prometheus.CounterVec
	RebalanceTurnover *prometheus.HistogramVec
	TransactionCosts  *prometheus.CounterVec

	// Run metrics
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	RunsInFlight prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "investment_x"
	}

	return &Metrics{
		// Simulation metrics
		BarsSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bars_simulated_total",
			Help:      "Total number of price bars simulated by strategy",
		}, []string{"strategy"}),
		Rebalances: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalances_total",
			Help:      "Total number of executed rebalances by strategy",
		}, []string{"strategy"}),
		Liquidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "liquidations_total",
			Help:      "Total number of forced liquidations to cash by strategy",
		}, []string{"strategy"}),
		DroppedAssets: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "dropped_assets_total",
			Help:      "Total number of unknown or unpriced assets dropped from targets",
		}, []string{"strategy"}),
		RebalanceTurnover: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "rebalance_turnover",
			Help:      "Turnover (L1 weight distance) per executed rebalance",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2},
		}, []string{"strategy"}),
		TransactionCosts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "transaction_costs_total",
			Help:      "Total simulated transaction costs in currency units",
		}, []string{"strategy"}),

		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of backtest runs by status",
		}, []string{"strategy", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"strategy"}),
		RunsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "in_flight",
			Help:      "Number of backtest runs currently executing",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBar increments the simulated bars counter.
func (m *Metrics) RecordBar(strategy string) {
	m.BarsSimulated.WithLabelValues(strategy).Inc()
}

// RecordRebalance records one executed rebalance.
func (m *Metrics) RecordRebalance(strategy string, turnover, cost float64) {
	m.Rebalances.WithLabelValues(strategy).Inc()
	m.RebalanceTurnover.WithLabelValues(strategy).Observe(turnover)
	m.TransactionCosts.WithLabelValues(strategy).Add(cost)
}

// RecordLiquidation increments the forced liquidation counter.
func (m *Metrics) RecordLiquidation(strategy string) {
	m.Liquidations.WithLabelValues(strategy).Inc()
}

// RecordDroppedAssets adds n dropped assets.
func (m *Metrics) RecordDroppedAssets(strategy string, n int) {
	m.DroppedAssets.WithLabelValues(strategy).Add(float64(n))
}

// RecordRun records a finished backtest run.
func (m *Metrics) RecordRun(strategy, status string, durationSeconds float64) {
	m.RunsTotal.WithLabelValues(strategy, status).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun records a finished backtest run on the default instance.
func RecordRun(strategy, status string, durationSeconds float64) {
	DefaultMetrics.RecordRun(strategy, status, durationSeconds)
}
