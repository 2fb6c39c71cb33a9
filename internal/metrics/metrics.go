// Package metrics exposes prometheus collectors for publishing and scheduling.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

const namespace = "affirmabot"

// Metrics holds the bot collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	firesTotal      *prometheus.CounterVec
	armedJobs       prometheus.Gauge
	cycleResets     prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_total",
				Help:      "Publish attempts by mode and result code",
			},
			[]string{"mode", "result"}, // result: ok or an error code
		),
		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Duration of publish attempts in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2min
			},
			[]string{"mode"},
		),
		firesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_fires_total",
				Help:      "Scheduled publish firings by result",
			},
			[]string{"result"}, // ok, error, panic
		),
		armedJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_armed_jobs",
				Help:      "Number of currently armed publish jobs",
			},
		),
		cycleResets: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotation_cycle_resets_total",
				Help:      "Number of completed exposure cycles",
			},
		),
	}

	m.registry.MustRegister(
		m.publishTotal,
		m.publishDuration,
		m.firesTotal,
		m.armedJobs,
		m.cycleResets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePublish records one publish attempt.
func (m *Metrics) ObservePublish(mode string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = apperrors.Code(err)
	}
	m.publishTotal.WithLabelValues(mode, result).Inc()
	m.publishDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveFire records the outcome of a scheduled firing.
func (m *Metrics) ObserveFire(result string) {
	if m == nil {
		return
	}
	m.firesTotal.WithLabelValues(result).Inc()
}

// SetArmed sets the number of armed publish jobs.
func (m *Metrics) SetArmed(n int) {
	if m == nil {
		return
	}
	m.armedJobs.Set(float64(n))
}

// CycleReset counts a restarted exposure cycle.
func (m *Metrics) CycleReset() {
	if m == nil {
		return
	}
	m.cycleResets.Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
