// Package metrics exposes Prometheus collectors for the render service and
// the job client.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	renderRequestsTotal        *prometheus.CounterVec
	renderDurationSeconds      *prometheus.HistogramVec
	renderActiveSessions       prometheus.Gauge
	renderBlockedMediaTotal    prometheus.Counter
	clientTransportAttempts    *prometheus.CounterVec
	clientPollChecksTotal      *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		renderRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapekit_render_requests_total",
				Help: "Total number of render requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		renderDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrapekit_render_duration_seconds",
				Help:    "Histogram of browser render latencies, labeled by outcome.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30, 60},
			},
			[]string{"outcome"},
		)

		renderActiveSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrapekit_render_active_sessions",
				Help: "Number of browser sessions currently open.",
			},
		)

		renderBlockedMediaTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrapekit_render_blocked_media_total",
				Help: "Total number of media sub-requests aborted by the session filter.",
			},
		)

		clientTransportAttempts = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapekit_client_transport_attempts_total",
				Help: "Total number of outbound API attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		clientPollChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapekit_client_poll_checks_total",
				Help: "Total number of crawl status checks, labeled by reported job status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// knownMethods bounds the method label; anything else is "OTHER".
var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodOptions: {},
}

func methodLabel(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return "OTHER"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRender records one finished render. The target URL is not a
// label: it is chosen by the caller and would make the series unbounded.
func ObserveRender(outcome string, duration time.Duration) {
	Init()
	renderRequestsTotal.WithLabelValues(outcome).Inc()
	renderDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncActiveSessions increments the open session gauge.
func IncActiveSessions() {
	Init()
	renderActiveSessions.Inc()
}

// DecActiveSessions decrements the open session gauge.
func DecActiveSessions() {
	Init()
	renderActiveSessions.Dec()
}

// ObserveBlockedMedia counts one aborted media sub-request.
func ObserveBlockedMedia() {
	Init()
	renderBlockedMediaTotal.Inc()
}

// ObserveTransportAttempt counts one outbound API attempt.
// outcome is "ok", "retry", "exhausted" or "error".
func ObserveTransportAttempt(outcome string) {
	Init()
	clientTransportAttempts.WithLabelValues(outcome).Inc()
}

// ObservePollCheck counts one crawl status check. status must come from a
// fixed set; the client folds unrecognised remote values into "other".
func ObservePollCheck(status string) {
	Init()
	clientPollChecksTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	method = methodLabel(method)
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
