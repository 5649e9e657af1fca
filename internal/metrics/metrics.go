// Package metrics instruments evaluations with Prometheus collectors.
//
// A search is a batch job, so nothing is served: the collected values are
// written once, as a node_exporter textfile, when the search ends.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/flagsearch/internal/engine"
	"github.com/roach88/flagsearch/internal/ir"
)

const namespace = "flagsearch"

// Result label values.
const (
	LabelSuccess = "success"
	LabelFailure = "failure"
)

// EvaluationMetrics holds the collectors of one search.
type EvaluationMetrics struct {
	Evaluations *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	BestScore   prometheus.Gauge
	InFlight    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates the collectors and registers them with a private registry.
func New() *EvaluationMetrics {
	m := &EvaluationMetrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Count of build and measure evaluations",
		}, []string{"kind", "result"}),

		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Histogram of times spent building and measuring one configuration",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"kind"}),

		BestScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Lowest successful score of a base or test evaluation so far",
		}),

		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluations_in_flight",
			Help:      "Number of evaluations currently running",
		}),

		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.PrometheusCollectors()...)
	return m
}

// PrometheusCollectors returns every collector.
func (m *EvaluationMetrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Evaluations,
		m.Duration,
		m.BestScore,
		m.InFlight,
	}
}

// Registry returns the registry holding the collectors.
func (m *EvaluationMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format.
func (m *EvaluationMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Oracle wraps an engine.Oracle and records every evaluation.
//
// Thread-safety: safe for concurrent use when the wrapped oracle is.
type Oracle struct {
	inner   engine.Oracle
	metrics *EvaluationMetrics
	now     func() time.Time

	best bestScore
}

var (
	_ engine.Oracle      = (*Oracle)(nil)
	_ engine.Preflighter = (*Oracle)(nil)
)

// Instrument wraps inner.
func (m *EvaluationMetrics) Instrument(inner engine.Oracle) *Oracle {
	return &Oracle{
		inner:   inner,
		metrics: m,
		now:     time.Now,
		best:    bestScore{gauge: m.BestScore},
	}
}

// Preflight forwards to the wrapped oracle when it has a preflight check.
func (o *Oracle) Preflight(ctx context.Context) error {
	if p, ok := o.inner.(engine.Preflighter); ok {
		return p.Preflight(ctx)
	}
	return nil
}

// Evaluate implements engine.Oracle.
func (o *Oracle) Evaluate(ctx context.Context, req ir.Request) (ir.Score, error) {
	kind := string(req.Kind)
	o.metrics.InFlight.Inc()
	start := o.now()

	score, err := o.inner.Evaluate(ctx, req)

	o.metrics.Duration.WithLabelValues(kind).Observe(o.now().Sub(start).Seconds())
	o.metrics.InFlight.Dec()

	if err != nil || !score.Valid() {
		o.metrics.Evaluations.WithLabelValues(kind, LabelFailure).Inc()
		return score, err
	}
	o.metrics.Evaluations.WithLabelValues(kind, LabelSuccess).Inc()
	if req.Kind == ir.RunKindBase || req.Kind == ir.RunKindTest {
		o.best.lower(score)
	}
	return score, nil
}
