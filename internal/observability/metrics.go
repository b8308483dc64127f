// Package observability exposes the Prometheus collectors of the service.
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const okLabel = "OK"

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postings        *prometheus.CounterVec
	voids           *prometheus.CounterVec
	locationsHealed prometheus.Counter
	invalidations   *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and ledger collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linen_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linen_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linen_ledger_postings_total",
		Help: "Posting attempts by transaction type and result code.",
	}, []string{"type", "result"})
	voids := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linen_ledger_voids_total",
		Help: "Void attempts by result code.",
	}, []string{"result"})
	healed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "linen_masters_locations_created_total",
		Help: "Locations created by self-heal.",
	})
	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linen_view_invalidations_total",
		Help: "View invalidations received from any process, by top-level path segment.",
	}, []string{"scope"})
	registry.MustRegister(requests, duration, postings, voids, healed, invalidations)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postings:        postings,
		voids:           voids,
		locationsHealed: healed,
		invalidations:   invalidations,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObservePosting counts a posting attempt. An empty code is a success.
func (m *Metrics) ObservePosting(txType string, code string) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(txType, resultLabel(code)).Inc()
}

// ObserveVoid counts a void attempt. An empty code is a success.
func (m *Metrics) ObserveVoid(code string) {
	if m == nil {
		return
	}
	m.voids.WithLabelValues(resultLabel(code)).Inc()
}

// ObserveSelfHeal adds the locations created by one self-heal call.
func (m *Metrics) ObserveSelfHeal(created int) {
	if m == nil || created <= 0 {
		return
	}
	m.locationsHealed.Add(float64(created))
}

// ObserveInvalidation counts an invalidated view path under its first segment, so
// per-id paths do not grow the label set.
func (m *Metrics) ObserveInvalidation(path string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(invalidationScope(path)).Inc()
}

func invalidationScope(path string) string {
	scope, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if scope == "" {
		return "unknown"
	}
	return scope
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func resultLabel(code string) string {
	if code == "" {
		return okLabel
	}
	return code
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
