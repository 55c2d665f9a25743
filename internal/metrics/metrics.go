// Package metrics counts what a build run did and writes the counters in the
// Prometheus text format, suitable for the node exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Component outcomes
const (
	ComponentBuilt     = "built"
	ComponentUnchanged = "unchanged"
	ComponentFailed    = "failed"
)

// Step outcomes
const (
	StepOK      = "ok"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// Metrics holds the collectors of one run
type Metrics struct {
	registry     *prometheus.Registry
	components   *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
}

// New creates collectors registered on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		components: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "abuild",
			Name:      "components_total",
			Help:      "Components evaluated, by outcome.",
		}, []string{"result"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "abuild",
			Name:      "steps_total",
			Help:      "Build steps considered, by outcome.",
		}, []string{"result"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "abuild",
			Name:      "step_duration_seconds",
			Help:      "Wall time of executed build steps.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}

	m.registry.MustRegister(m.components, m.steps, m.stepDuration)

	return m
}

// Component counts a component outcome
func (m *Metrics) Component(result string) {
	m.components.WithLabelValues(result).Inc()
}

// Step counts a step outcome. Skipped steps have no duration.
func (m *Metrics) Step(result string, seconds float64) {
	m.steps.WithLabelValues(result).Inc()

	if result != StepSkipped {
		m.stepDuration.Observe(seconds)
	}
}

// Gatherer exposes the registry
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteFile atomically writes all metrics to path in the text format
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
