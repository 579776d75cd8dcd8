package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "cpleditor"

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	loads       *prometheus.CounterVec
	saves       *prometheus.CounterVec
	mutations   *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
}

// NewMetrics registers the collectors. Session and limiter gauges are read
// on scrape.
func NewMetrics(sessions *SessionRegistry, loads *core.LoadLimiter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loads_total",
			Help:      "File loads by outcome.",
		}, []string{"preset", "result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "saves_total",
			Help:      "File exports by outcome.",
		}, []string{"result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_mutations_total",
			Help:      "Record creates, updates and deletes by outcome.",
		}, []string{"action", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_blocks_total",
			Help:      "Requests rejected by rate limiting.",
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.loads, m.saves, m.mutations, m.rateLimited,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Live editor sessions.",
		}, func() float64 { return float64(sessions.Count()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_unsaved",
			Help:      "Sessions holding unsaved edits.",
		}, func() float64 { return float64(sessions.UnsavedCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "loads_in_flight",
			Help:      "File decodes currently running.",
		}, func() float64 { return float64(loads.InFlight()) }),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests and observes latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded by using the matched route
// instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (m *Metrics) observeLoad(preset string, err error) {
	m.loads.WithLabelValues(preset, outcome(err)).Inc()
}

func (m *Metrics) observeSave(err error) {
	m.saves.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeMutation(action core.AuditAction, err error) {
	m.mutations.WithLabelValues(string(action), outcome(err)).Inc()
}

// outcome labels an error by its support code, "ok" for nil.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return core.MapError(err).Code
}
