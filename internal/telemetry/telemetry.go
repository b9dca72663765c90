// Package telemetry exposes Prometheus collectors for the jobfetch service.
package telemetry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	itemsTotal                 *prometheus.CounterVec
	cacheEventsTotal           *prometheus.CounterVec
	sessionReinitsTotal        *prometheus.CounterVec
	admissionWaitSeconds       prometheus.Histogram
	batchSizeItems             prometheus.Histogram
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times. Record functions are
// no-ops until Init runs.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfetch_fetch_attempts_total",
				Help: "Total fetch attempts against target sites, labeled by platform and outcome.",
			},
			[]string{"platform", "outcome"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfetch_items_total",
				Help: "Total work items completed, labeled by platform and status.",
			},
			[]string{"platform", "status"},
		)

		cacheEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfetch_cache_events_total",
				Help: "Total cache events, labeled by event type.",
			},
			[]string{"event"},
		)

		sessionReinitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfetch_session_reinits_total",
				Help: "Total session reinitializations, labeled by platform and outcome.",
			},
			[]string{"platform", "outcome"},
		)

		admissionWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobfetch_admission_wait_seconds",
				Help:    "Histogram of time spent waiting for rate limiter admission.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		batchSizeItems = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobfetch_batch_size_items",
				Help:    "Histogram of batch sizes submitted to the executor.",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobfetch_active_workers",
				Help: "Number of workers currently processing an item.",
			},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetchAttempt increments the fetch attempt counter.
func RecordFetchAttempt(platform, outcome string) {
	if fetchAttemptsTotal == nil {
		return
	}
	fetchAttemptsTotal.WithLabelValues(platform, outcome).Inc()
}

// RecordItem increments the completed item counter.
func RecordItem(platform, status string) {
	if itemsTotal == nil {
		return
	}
	itemsTotal.WithLabelValues(platform, status).Inc()
}

// RecordCacheEvent increments the cache event counter.
func RecordCacheEvent(event string) {
	if cacheEventsTotal == nil {
		return
	}
	cacheEventsTotal.WithLabelValues(event).Inc()
}

// RecordSessionReinit increments the session reinitialization counter.
func RecordSessionReinit(platform, outcome string) {
	if sessionReinitsTotal == nil {
		return
	}
	sessionReinitsTotal.WithLabelValues(platform, outcome).Inc()
}

// ObserveAdmissionWait records time spent blocked on the rate limiter.
func ObserveAdmissionWait(duration time.Duration) {
	if admissionWaitSeconds == nil {
		return
	}
	admissionWaitSeconds.Observe(duration.Seconds())
}

// ObserveBatchSize records the size of a submitted batch.
func ObserveBatchSize(n int) {
	if batchSizeItems == nil {
		return
	}
	batchSizeItems.Observe(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
