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

// Metrics holds the collectors of one server instance. A nil *Metrics is
// valid and records nothing, so services can be built without it in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loginAttempts      *prometheus.CounterVec
	refreshAttempts    *prometheus.CounterVec
	refreshTokenReuse  prometheus.Counter
	tenantScopeBypass  prometheus.Counter
	tenantScopeDenials *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_attempts_total",
			Help: "Refresh token redemptions by outcome.",
		}, []string{"outcome"}),
		refreshTokenReuse: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_token_reuse_total",
			Help: "Redemptions of already rotated refresh tokens.",
		}),
		tenantScopeBypass: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenancy_scope_bypass_total",
			Help: "Contexts granted an audited tenant scope bypass.",
		}),
		tenantScopeDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenancy_scope_denied_total",
			Help: "Scoped queries refused because no tenant was resolved.",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.loginAttempts,
		m.refreshAttempts,
		m.refreshTokenReuse,
		m.tenantScopeBypass,
		m.tenantScopeDenials,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// LoginAttempt counts a login by outcome (success, invalid_credentials, error)
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// RefreshAttempt counts a refresh by outcome
func (m *Metrics) RefreshAttempt(outcome string) {
	if m == nil {
		return
	}
	m.refreshAttempts.WithLabelValues(outcome).Inc()
}

// RefreshTokenReuse counts a redemption of a rotated token
func (m *Metrics) RefreshTokenReuse() {
	if m == nil {
		return
	}
	m.refreshTokenReuse.Inc()
}

// TenantScopeBypassed counts an audited tenant scope bypass
func (m *Metrics) TenantScopeBypassed() {
	if m == nil {
		return
	}
	m.tenantScopeBypass.Inc()
}

// TenantScopeDenied counts a scoped query refused for lack of a tenant
func (m *Metrics) TenantScopeDenied(target string) {
	if m == nil {
		return
	}
	m.tenantScopeDenials.WithLabelValues(target).Inc()
}

// Instrument records RPS, latency and in-flight requests. The route label is
// the chi route pattern so ids in paths do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
