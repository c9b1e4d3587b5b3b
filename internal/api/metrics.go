package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routeMetrics are the per-route HTTP series exported under shoplist_http_*.
type routeMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
	inFlight prometheus.Gauge
}

var (
	sharedRouteMetricsOnce sync.Once
	sharedRouteMetrics     *routeMetrics
)

// defaultRouteMetrics registers once with the process-wide registry so
// repeated NewServer calls do not panic on duplicate registration.
func defaultRouteMetrics() *routeMetrics {
	sharedRouteMetricsOnce.Do(func() {
		sharedRouteMetrics = newRouteMetrics(prometheus.DefaultRegisterer)
	})
	return sharedRouteMetrics
}

func newRouteMetrics(reg prometheus.Registerer) *routeMetrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "shoplist", Subsystem: "http", Name: name, Help: help}
	}
	m := &routeMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("requests_total", "HTTP requests by route and status class.")),
			[]string{"method", "route", "status_class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shoplist",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"method", "route", "status_class"}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("errors_total", "HTTP responses with status >= 400.")),
			[]string{"method", "route", "status_code"}),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts(opts("requests_in_flight", "HTTP requests currently being served."))),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.failures, m.inFlight)
	}
	return m
}

// matchedRoute carries the mux pattern back out to the outer middleware.
// ServeMux records Pattern on the request it receives, which is a copy once
// any middleware has called WithContext.
type matchedRoute struct {
	pattern string
}

type matchedRouteKey struct{}

// withMatchedRoute attaches an empty holder to r, reusing one set further out.
func withMatchedRoute(r *http.Request) (*http.Request, *matchedRoute) {
	if m, ok := r.Context().Value(matchedRouteKey{}).(*matchedRoute); ok {
		return r, m
	}
	m := &matchedRoute{}
	return r.WithContext(context.WithValue(r.Context(), matchedRouteKey{}, m)), m
}

func matchedRouteFrom(ctx context.Context) *matchedRoute {
	m, _ := ctx.Value(matchedRouteKey{}).(*matchedRoute)
	return m
}

// captureMatchedRoute wraps the mux and copies the pattern it matched into
// the request's holder.
func captureMatchedRoute(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if m := matchedRouteFrom(r.Context()); m != nil {
			m.pattern = routePattern(r.Pattern)
		}
	})
}

func instrumentRequests(m *routeMetrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL != nil && r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		req, _ := withMatchedRoute(r)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		elapsed := time.Since(start).Seconds()

		route := routeLabel(req)
		class := httpStatusClass(rec.status)
		m.requests.WithLabelValues(r.Method, route, class).Inc()
		m.latency.WithLabelValues(r.Method, route, class).Observe(elapsed)
		if rec.status >= http.StatusBadRequest {
			m.failures.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		}
	})
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// routeLabel prefers the pattern captured from the mux, then r.Pattern, and
// otherwise buckets the raw path so label cardinality stays bounded.
func routeLabel(r *http.Request) string {
	if r == nil || r.URL == nil {
		return "unknown"
	}
	if m := matchedRouteFrom(r.Context()); m != nil && m.pattern != "" {
		return m.pattern
	}
	if pattern := routePattern(r.Pattern); pattern != "" {
		return pattern
	}
	switch path := r.URL.Path; {
	case path == "/healthz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

// routePattern drops the method prefix from a ServeMux pattern.
func routePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if _, route, ok := strings.Cut(pattern, " "); ok {
		return strings.TrimSpace(route)
	}
	return pattern
}

func httpStatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
