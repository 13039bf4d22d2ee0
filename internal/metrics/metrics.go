// Package metrics exposes the sandbox domain's Prometheus instrumentation:
// evaluation outcomes, fuel consumption, and store accounting. Shaped after
// the teacher's internal/metrics/prometheus.go (one struct of pre-registered
// collectors behind a constructor that takes a namespace), trimmed to the
// counters and gauges this core can actually observe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide Prometheus collectors. The HTTP layer
// updates EvaluationsTotal and FuelConsumed through ObserveOutcome; no
// caller in this repository updates StoreBytes, StoreEntries, Evictions
// or LiveSandboxes, so those stay at zero.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal *prometheus.CounterVec
	FuelConsumed     prometheus.Histogram
	StoreBytes       prometheus.Gauge
	StoreEntries     prometheus.Gauge
	Evictions        prometheus.Counter
	LiveSandboxes    prometheus.Gauge
}

// New constructs and registers the sandbox metrics under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total sandbox evaluations by outcome and stage.",
		}, []string{"outcome", "stage"}),
		FuelConsumed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fuel_consumed",
			Help:      "Fuel units consumed per evaluation call.",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 12),
		}),
		StoreBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_accounted_bytes",
			Help:      "Bytes currently accounted by the sandbox store.",
		}),
		StoreEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_entries",
			Help:      "Number of reusable sandbox contexts currently cached.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_evictions_total",
			Help:      "Total entries evicted from the sandbox store under budget pressure.",
		}),
		LiveSandboxes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sandboxes",
			Help:      "Sandbox contexts currently executing a run().",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.FuelConsumed,
		m.StoreBytes,
		m.StoreEntries,
		m.Evictions,
		m.LiveSandboxes,
	)
	return m
}

// ObserveOutcome records one evaluation's terminal classification.
func (m *Metrics) ObserveOutcome(outcome, stage string, fuelConsumed uint64) {
	m.EvaluationsTotal.WithLabelValues(outcome, stage).Inc()
	m.FuelConsumed.Observe(float64(fuelConsumed))
}

// SetStoreSnapshot updates the store gauges from a point-in-time read.
func (m *Metrics) SetStoreSnapshot(accountedBytes uint64, entries int) {
	m.StoreBytes.Set(float64(accountedBytes))
	m.StoreEntries.Set(float64(entries))
}

// RecordEviction increments the eviction counter.
func (m *Metrics) RecordEviction() {
	m.Evictions.Inc()
}
