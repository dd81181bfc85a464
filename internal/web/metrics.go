package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	refreshTotal  *prometheus.CounterVec
	events        prometheus.Gauge
	layoutInvalid prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calgrid_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calgrid_http_request_duration_seconds",
			Help:    "HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calgrid_source_cache_hits_total",
			Help: "Layout requests served from the cached source batch.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calgrid_source_cache_misses_total",
			Help: "Layout requests that triggered a source refresh.",
		}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calgrid_source_refresh_total",
			Help: "Source refreshes by result.",
		}, []string{"result"}),
		events: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calgrid_source_events",
			Help: "Raw events in the current batch.",
		}),
		layoutInvalid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "calgrid_layout_invalid_events",
			Help: "Invalid events reported by the last layout.",
		}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.refreshTotal,
		m.events,
		m.layoutInvalid,
		collectors.NewGoCollector(),
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records count and latency of requests to route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) refreshed(err error, events int) {
	if m == nil {
		return
	}
	if err != nil {
		m.refreshTotal.WithLabelValues("error").Inc()
	} else {
		m.refreshTotal.WithLabelValues("ok").Inc()
	}
	m.events.Set(float64(events))
}

func (m *Metrics) invalidEvents(n int) {
	if m != nil {
		m.layoutInvalid.Set(float64(n))
	}
}
