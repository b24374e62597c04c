package metrics

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

const namespace = "weather"

// Metrics holds the pipeline instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	lookups  *prometheus.CounterVec
	upstream *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// New creates a registry carrying the Go runtime and process collectors
// plus the lookup, upstream and cache instruments.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Weather lookups served, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of geocoding and forecast calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"upstream", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Same-day cache reads, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.lookups, m.upstream, m.cache)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Lookup counts one served lookup.
func (m *Metrics) Lookup(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveUpstream records one upstream call.
func (m *Metrics) ObserveUpstream(upstream, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(upstream, outcome).Observe(d.Seconds())
}

// CacheResult counts one same-day cache read.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// Scrape renders the registry in Prometheus text exposition format.
func (m *Metrics) Scrape() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
