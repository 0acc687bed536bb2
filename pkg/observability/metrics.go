package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TraversalRecorder is told about every finished lineage traversal
type TraversalRecorder interface {
	RecordTraversal(ctx context.Context, direction string, nodes int, duration time.Duration, err error)
}

// Recorders fans a traversal out to several recorders
type Recorders []TraversalRecorder

// RecordTraversal implements TraversalRecorder
func (rs Recorders) RecordTraversal(ctx context.Context, direction string, nodes int, duration time.Duration, err error) {
	for _, r := range rs {
		if r != nil {
			r.RecordTraversal(ctx, direction, nodes, duration, err)
		}
	}
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Traversal metrics
	TraversalsTotal   *prometheus.CounterVec
	TraversalDuration *prometheus.HistogramVec
	TraversalNodes    *prometheus.HistogramVec

	// Store metrics
	StoreQueriesTotal   *prometheus.CounterVec
	FixtureReloadsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lineage_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		TraversalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_traversals_total",
				Help: "Total number of lineage traversals",
			},
			[]string{"direction", "status"},
		),
		TraversalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lineage_traversal_duration_seconds",
				Help:    "Lineage traversal duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		TraversalNodes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lineage_traversal_nodes",
				Help:    "Number of entries in a traversal result",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"direction"},
		),

		StoreQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_store_queries_total",
				Help: "Total number of record store queries",
			},
			[]string{"operation", "status"},
		),
		FixtureReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_fixture_reloads_total",
				Help: "Total number of fixture directory reloads",
			},
			[]string{"status"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_cache_hits_total",
				Help: "Total number of record cache hits",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_cache_misses_total",
				Help: "Total number of record cache misses",
			},
			[]string{"layer"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TraversalsTotal,
		m.TraversalDuration,
		m.TraversalNodes,
		m.StoreQueriesTotal,
		m.FixtureReloadsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// RecordTraversal implements TraversalRecorder
func (m *Metrics) RecordTraversal(ctx context.Context, direction string, nodes int, duration time.Duration, err error) {
	m.TraversalsTotal.WithLabelValues(direction, statusLabel(err)).Inc()
	m.TraversalDuration.WithLabelValues(direction).Observe(duration.Seconds())
	if err == nil {
		m.TraversalNodes.WithLabelValues(direction).Observe(float64(nodes))
	}
}

// ObserveQuery counts a record store query
func (m *Metrics) ObserveQuery(operation string, err error) {
	m.StoreQueriesTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

// RecordReload counts a fixture directory reload
func (m *Metrics) RecordReload(records int, err error) {
	m.FixtureReloadsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// CacheHit counts a record cache hit
func (m *Metrics) CacheHit(layer string) {
	m.CacheHitsTotal.WithLabelValues(layer).Inc()
}

// CacheMiss counts a record cache miss
func (m *Metrics) CacheMiss(layer string) {
	m.CacheMissesTotal.WithLabelValues(layer).Inc()
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by route template so ids do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
