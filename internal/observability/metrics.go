package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ordersTotal     *prometheus.CounterVec
	orderValue      *prometheus.HistogramVec
	searchesTotal   *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krishimarket_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "krishimarket_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krishimarket_orders_submitted_total",
		Help: "Order submissions by workflow and outcome.",
	}, []string{"workflow", "outcome"})
	value := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "krishimarket_order_grand_total_rupees",
		Help:    "Grand total (or broker net amount) of persisted orders.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 8),
	}, []string{"workflow"})
	searches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "krishimarket_counterparty_searches_total",
		Help: "Counterparty searches by role and outcome.",
	}, []string{"role", "outcome"})
	registry.MustRegister(requests, duration, orders, value, searches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ordersTotal:     orders,
		orderValue:      value,
		searchesTotal:   searches,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
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

// ObserveOrderSubmit records one submit attempt. grandTotal is only observed
// for successful submissions.
func (m *Metrics) ObserveOrderSubmit(workflow, outcome string, grandTotal float64) {
	if m == nil {
		return
	}
	m.ordersTotal.WithLabelValues(workflow, outcome).Inc()
	if outcome == "success" {
		m.orderValue.WithLabelValues(workflow).Observe(grandTotal)
	}
}

// ObserveSearch records one counterparty search.
func (m *Metrics) ObserveSearch(role, outcome string) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(role, outcome).Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
