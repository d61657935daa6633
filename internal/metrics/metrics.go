package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for output generation.
type Metrics struct {
	decisions   *prometheus.CounterVec
	materialize *prometheus.HistogramVec
	cache       *prometheus.CounterVec
	bytes       *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry. The
// collectors are created once so repeated pipelines do not panic on
// duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew constructs Metrics registered with reg. Registration errors panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "derivimg",
				Name:      "decisions_total",
				Help:      "Copy/process decisions by reason.",
			},
			[]string{"action", "reason"},
		),
		materialize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "derivimg",
				Name:      "materialize_seconds",
				Help:      "Time spent producing one output.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "derivimg",
				Name:      "cache_lookups_total",
				Help:      "Cache coordinator lookups by result.",
			},
			[]string{"result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "derivimg",
				Name:      "output_bytes_total",
				Help:      "Bytes of output produced by action.",
			},
			[]string{"action"},
		),
	}
	reg.MustRegister(m.decisions, m.materialize, m.cache, m.bytes)
	return m
}

// ObserveDecision counts one decision. Safe on a nil receiver.
func (m *Metrics) ObserveDecision(action, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action, reason).Inc()
}

// ObserveMaterialize records the duration and size of one output.
func (m *Metrics) ObserveMaterialize(action string, d time.Duration, size int64) {
	if m == nil {
		return
	}
	m.materialize.WithLabelValues(action).Observe(d.Seconds())
	m.bytes.WithLabelValues(action).Add(float64(size))
}

// ObserveCache counts a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}
