// Package metrics provides Prometheus instrumentation for the decision engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records all engine metrics against one registry
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal      *prometheus.CounterVec
	runsTotal           *prometheus.CounterVec
	hardStopActivations prometheus.Counter
	fallbackLevelTotal  *prometheus.CounterVec
	runDuration         prometheus.Histogram
	predictionsPending  prometheus.Gauge
}

// NewCollector creates a metrics collector. If registry is nil a fresh
// registry is used.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtedge",
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Policy decisions by final status.",
		}, []string{"status"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtedge",
			Subsystem: "policy",
			Name:      "runs_total",
			Help:      "Daily runs by terminal status.",
		}, []string{"status"}),
		hardStopActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courtedge",
			Subsystem: "risk",
			Name:      "hard_stop_activations_total",
			Help:      "Number of times the hard-stop kill-switch activated.",
		}),
		fallbackLevelTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courtedge",
			Subsystem: "fallback",
			Name:      "level_total",
			Help:      "Fallback chain outcomes by final level.",
		}, []string{"level"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "courtedge",
			Subsystem: "policy",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of daily runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300, 600},
		}),
		predictionsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "courtedge",
			Subsystem: "policy",
			Name:      "predictions_pending",
			Help:      "Predictions currently awaiting a decision.",
		}),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.runsTotal,
		c.hardStopActivations,
		c.fallbackLevelTotal,
		c.runDuration,
		c.predictionsPending,
	)

	return c
}

// Registry returns the underlying registry for the /metrics handler
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordDecision counts one decision by status
func (c *Collector) RecordDecision(status string) {
	c.decisionsTotal.WithLabelValues(status).Inc()
}

// RecordRun counts one completed run and its duration
func (c *Collector) RecordRun(status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordHardStopActivation counts one kill-switch activation
func (c *Collector) RecordHardStopActivation() {
	c.hardStopActivations.Inc()
}

// RecordFallbackLevel counts one fallback chain outcome
func (c *Collector) RecordFallbackLevel(level string) {
	c.fallbackLevelTotal.WithLabelValues(level).Inc()
}

// SetPendingPredictions updates the pending gauge
func (c *Collector) SetPendingPredictions(n int) {
	c.predictionsPending.Set(float64(n))
}
