package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache traffic per key kind. A nil *Metrics is a no-op.
type Metrics struct {
	lookups       *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache reads by kind and outcome (hit, stale, miss)",
		}, []string{"kind", "outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Remote fetches issued by the cache by kind and result",
		}, []string{"kind", "result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache entries invalidated by kind",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.lookups, m.fetches, m.invalidations)
	return m
}

func (m *Metrics) lookup(kind Kind, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) fetch(kind Kind, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) invalidated(kind Kind, n int) {
	if m == nil || n == 0 {
		return
	}
	m.invalidations.WithLabelValues(string(kind)).Add(float64(n))
}
