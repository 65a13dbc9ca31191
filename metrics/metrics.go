package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the resolver's metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	reg *prometheus.Registry

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions *prometheus.CounterVec // reason label: expired|shape|invalidated

	UpstreamRequests *prometheus.CounterVec // source, outcome labels
	Fallbacks        *prometheus.CounterVec // kind label: sample|empty

	ResolveDuration prometheus.Histogram
	RefreshDuration prometheus.Histogram
	LastRefresh     prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbus_cache_hits_total",
			Help: "Resolutions served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mbus_cache_misses_total",
			Help: "Resolutions not found in cache, or found unusable.",
		}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbus_cache_evictions_total",
			Help: "Cache entries removed, by reason.",
		}, []string{"reason"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbus_upstream_requests_total",
			Help: "Upstream arrival requests, by source and outcome.",
		}, []string{"source", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mbus_fallbacks_total",
			Help: "Degraded resolutions served, by kind.",
		}, []string{"kind"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbus_resolve_duration_seconds",
			Help:    "Time to resolve one stop/route pair.",
			Buckets: prometheus.DefBuckets,
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbus_refresh_duration_seconds",
			Help:    "Time to refresh all journey groups.",
			Buckets: prometheus.DefBuckets,
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mbus_last_refresh_timestamp_seconds",
			Help: "Unix time of the last completed refresh.",
		}),
	}

	reg.MustRegister(
		c.CacheHits,
		c.CacheMisses,
		c.CacheEvictions,
		c.UpstreamRequests,
		c.Fallbacks,
		c.ResolveDuration,
		c.RefreshDuration,
		c.LastRefresh,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler exposing the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.CacheHits.Inc()
}

func (c *Collector) CacheMiss() {
	if c == nil {
		return
	}
	c.CacheMisses.Inc()
}

func (c *Collector) CacheEvicted(reason string) {
	if c == nil {
		return
	}
	c.CacheEvictions.WithLabelValues(reason).Inc()
}

func (c *Collector) Upstream(source string, outcome string) {
	if c == nil {
		return
	}
	c.UpstreamRequests.WithLabelValues(source, outcome).Inc()
}

func (c *Collector) Fallback(kind string) {
	if c == nil {
		return
	}
	c.Fallbacks.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveResolve(d time.Duration) {
	if c == nil {
		return
	}
	c.ResolveDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveRefresh(d time.Duration, at time.Time) {
	if c == nil {
		return
	}
	c.RefreshDuration.Observe(d.Seconds())
	c.LastRefresh.Set(float64(at.Unix()))
}
