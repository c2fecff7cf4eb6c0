// Package metrics exposes Prometheus instruments for the notifier pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_cycles_total",
			Help: "Completed poll cycles by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "cancelled"
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_cycle_duration_seconds",
			Help:    "Duration of a single poll cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_items_total",
			Help: "Feed items handled by disposition",
		},
		[]string{"disposition"}, // "seen", "unmatched", "rejected", "notified"
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_total",
			Help: "Notification delivery attempts per sink",
		},
		[]string{"sink", "result"},
	)

	EnrichmentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_enrichment_fallbacks_total",
			Help: "Enrichment fields that fell back to a placeholder",
		},
		[]string{"field"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	WatcherState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_watcher_state",
			Help: "Watcher loop state (0=polling, 1=backoff)",
		},
	)

	SeenItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_seen_items",
			Help: "Distinct item ids in the seen set",
		},
	)
)

// RecordDelivery counts one sink delivery attempt.
func RecordDelivery(sink string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	DeliveriesTotal.WithLabelValues(sink, result).Inc()
}
