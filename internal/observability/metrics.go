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
	// Ingestion metrics
	TransactionsScanned prometheus.Counter
	SwapsDetected       prometheus.Counter
	DuplicatesDropped   prometheus.Counter
	FilterRejections    *prometheus.CounterVec

	// Alerting metrics
	AlertsFired        *prometheus.CounterVec
	AlertsSuppressed   *prometheus.CounterVec
	NotifyFailures     prometheus.Counter
	WindowWallets      *prometheus.GaugeVec
	TrackedWindowMints prometheus.Gauge

	// Valuation metrics
	ChecksExecuted  *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	PendingChecks   prometheus.Gauge

	// Provider metrics
	ProviderCallLatency *prometheus.HistogramVec
	ProviderRateLimits  prometheus.Counter

	// Polling metrics
	PollCyclesTotal   *prometheus.CounterVec
	PollCycleDuration prometheus.Histogram

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "smartmoney_monitor"
	}

	return &Metrics{
		TransactionsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_scanned_total",
			Help:      "Total number of enhanced transactions inspected",
		}),
		SwapsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "swaps_detected_total",
			Help:      "Total number of transactions classified as swaps",
		}),
		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of already-processed signatures dropped",
		}),
		FilterRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "filter_rejections_total",
			Help:      "Total number of swaps rejected by quality filters",
		}, []string{"filter"}),

		AlertsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_fired_total",
			Help:      "Total number of alert decisions emitted",
		}, []string{"kind"}),
		AlertsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of threshold crossings suppressed",
		}, []string{"reason"}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "notify_failures_total",
			Help:      "Total number of failed alert deliveries",
		}),
		WindowWallets: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "window_wallets",
			Help:      "Unique wallets in the live purchase window by mint",
		}, []string{"mint"}),
		TrackedWindowMints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "window_mints",
			Help:      "Number of mints with a live purchase window",
		}),

		ChecksExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "checks_executed_total",
			Help:      "Total number of deferred valuation checks executed",
		}, []string{"label"}),
		Classifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "classifications_total",
			Help:      "Total number of valuation classifications by outcome",
		}, []string{"classification"}),
		PendingChecks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "pending_checks",
			Help:      "Number of scheduled checks not yet executed",
		}),

		ProviderCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "External provider call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		ProviderRateLimits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "rate_limits_total",
			Help:      "Total number of calls abandoned after rate-limit backoff",
		}),

		PollCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "polling",
			Name:      "cycles_total",
			Help:      "Total number of polling cycles by status",
		}, []string{"status"}),
		PollCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "polling",
			Name:      "cycle_duration_seconds",
			Help:      "Polling cycle duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
