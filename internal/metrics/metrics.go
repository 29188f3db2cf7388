// Package metrics provides Prometheus instrumentation for the settlement
// analytics service.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ComputationsTotal counts analytic computations by analytic and result.
	ComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_analytics_computations_total",
		Help: "Total analytic computations",
	}, []string{"analytic", "result"})

	// ComputationDuration tracks read+filter+compute latency per analytic.
	ComputationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_analytics_computation_duration_seconds",
		Help:    "Analytic computation latency in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"analytic"})

	// SettlementsRead is the number of records in the most recent log read.
	SettlementsRead = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_analytics_settlements_read",
		Help: "Settlement records returned by the most recent log read",
	})

	// MalformedLinesTotal counts log lines skipped during normalization.
	MalformedLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_analytics_malformed_lines_total",
		Help: "Settlement log lines skipped as malformed",
	})

	// CacheRequestsTotal counts settlement cache lookups by result.
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_analytics_cache_requests_total",
		Help: "Settlement cache lookups",
	}, []string{"result"})

	// SourceErrorsTotal counts failed reads by source kind.
	SourceErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_analytics_source_errors_total",
		Help: "Failed settlement source reads",
	}, []string{"source"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_analytics_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_analytics_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_analytics_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveComputation records one analytic run.
func ObserveComputation(analytic string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ComputationsTotal.WithLabelValues(analytic, result).Inc()
	ComputationDuration.WithLabelValues(analytic).Observe(time.Since(start).Seconds())
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for the path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
