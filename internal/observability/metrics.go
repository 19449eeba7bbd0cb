// Package observability exposes Prometheus metrics for the swap engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rwa_swap_engine"

// Metrics holds all engine metrics. One instance per process.
type Metrics struct {
	QuotesGenerated  prometheus.Counter
	QuotesRejected   *prometheus.CounterVec
	QuotesExpired    prometheus.Counter
	SwapsStarted     prometheus.Counter
	SwapsByOutcome   *prometheus.CounterVec
	SwapDuration     prometheus.Histogram
	ProviderAttempts *prometheus.CounterVec
	FeesCollected    prometheus.Counter
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		QuotesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_generated_total",
			Help:      "Quotes successfully generated",
		}),
		QuotesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_rejected_total",
			Help:      "Quote requests rejected, by reason",
		}, []string{"reason"}),
		QuotesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_expired_total",
			Help:      "Quotes expired by the sweeper",
		}),
		SwapsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_started_total",
			Help:      "Swap executions started",
		}),
		SwapsByOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_finished_total",
			Help:      "Swap executions finished, by terminal status",
		}, []string{"status"}),
		SwapDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "swap_duration_seconds",
			Help:      "End-to-end swap execution duration",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ProviderAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider calls, by provider and result",
		}, []string{"provider", "result"}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_collected_total",
			Help:      "Total platform fees collected",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
