// Package observability exposes Prometheus metrics for the HTTP surface and
// the settlement ledger.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	plansTotal          prometheus.Counter
	planTransactions    prometheus.Histogram
	integrityViolations *prometheus.CounterVec
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsplit_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billsplit_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	plans := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billsplit_settlement_plans_total",
		Help: "Settlement plans computed.",
	})
	planTxs := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "billsplit_settlement_plan_transactions",
		Help:    "Transactions per computed settlement plan.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
	})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billsplit_integrity_violations_total",
		Help: "Ledger integrity violations by operation.",
	}, []string{"operation"})

	registry.MustRegister(
		requests, duration, plans, planTxs, violations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		plansTotal:          plans,
		planTransactions:    planTxs,
		integrityViolations: violations,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
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

// ObservePlan records one computed settlement plan.
func (m *Metrics) ObservePlan(transactions int) {
	if m == nil {
		return
	}
	m.plansTotal.Inc()
	m.planTransactions.Observe(float64(transactions))
}

// IntegrityViolation counts a ledger integrity failure for operation.
func (m *Metrics) IntegrityViolation(operation string) {
	if m == nil {
		return
	}
	m.integrityViolations.WithLabelValues(operation).Inc()
}

// Registerer exposes the registry for custom collectors.
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
