// Package metrics provides Prometheus instrumentation for the match engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SwipesTotal counts recorded decisions, partitioned by verdict.
	SwipesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptomatch_swipes_total",
		Help: "Total number of swipe decisions recorded",
	}, []string{"verdict"})

	// MatchesTotal counts matches created from mutual likes.
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptomatch_matches_total",
		Help: "Total number of matches created",
	})

	// MessagesTotal counts chat messages accepted.
	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptomatch_messages_total",
		Help: "Total number of chat messages sent",
	})

	// ProfileViewsTotal counts candidate profiles surfaced by discovery.
	ProfileViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptomatch_profile_views_total",
		Help: "Total number of candidate profile views",
	})

	// RateLimitRejections counts swipes refused by the daily cap.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cryptomatch_rate_limit_rejections_total",
		Help: "Swipes rejected by the free-tier daily cap",
	})

	// WebSocketClients tracks connected live-channel sessions.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cryptomatch_websocket_clients",
		Help: "Number of connected live-channel sessions",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cryptomatch_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cryptomatch_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the surface is small enough that
		// cardinality stays bounded per user-free route segments.
		path := r.URL.Path
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
