// Package metrics exposes Prometheus counters and histograms for engine runs.
package metrics

import (
	"net/http"
	"time"

	"corp_finance/pkg/core/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clo"

// Run kinds, used as the "kind" label.
const (
	KindWaterfall = "waterfall"
	KindScenarios = "scenarios"
)

// Metrics collection for one process.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	PeriodsSimulated   prometheus.Counter
	PoolExhaustions    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New builds the collectors. subsystem is usually the service name.
func New(subsystem string) *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Completed engine runs",
		}, []string{"kind"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_failures_total",
			Help:      "Runs rejected by input validation, by field",
		}, []string{"kind", "field"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Engine run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		PeriodsSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "periods_simulated_total",
			Help:      "Waterfall periods simulated",
		}),
		PoolExhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_exhaustions_total",
			Help:      "Waterfall runs whose collateral pool ran out before the horizon",
		}),
	}
}

// Register adds every collector to reg. A nil reg means the default registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		m.RunsTotal,
		m.ValidationFailures,
		m.RunDuration,
		m.PeriodsSimulated,
		m.PoolExhaustions,
	} {
		if err := reg.Register(c); err != nil {
			logger.Get().Error("[METRICS] failed to register collector", "error", err)
			return err
		}
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return nil
}

// ObserveRun records a completed run.
func (m *Metrics) ObserveRun(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(kind).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveRejected records a validation failure on field.
func (m *Metrics) ObserveRejected(kind, field string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(kind, field).Inc()
}

// ObserveWaterfall records the shape of a finished waterfall run.
func (m *Metrics) ObserveWaterfall(periods int, exhausted bool) {
	if m == nil {
		return
	}
	m.PeriodsSimulated.Add(float64(periods))
	if exhausted {
		m.PoolExhaustions.Inc()
	}
}

// Handler serves the registry the collectors were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
