// Package metrics exposes Prometheus collectors for the service.
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
	pagesFetchedTotal          *prometheus.CounterVec
	browserEscalationsTotal    prometheus.Counter
	roundsIngestedTotal        prometheus.Counter
	storeWriteFailuresTotal    *prometheus.CounterVec
	searchesTotal              *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retake_pages_fetched_total",
				Help: "Total pages fetched, labeled by mode (http or browser) and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		browserEscalationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "retake_browser_escalations_total",
				Help: "Times the fetcher permanently switched into browser mode after bot detection.",
			},
		)

		roundsIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "retake_rounds_ingested_total",
				Help: "Total round records processed by the ingestion pipeline.",
			},
		)

		storeWriteFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retake_store_write_failures_total",
				Help: "Failed writes per persistence tier (local or cloud).",
			},
			[]string{"tier"},
		)

		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retake_searches_total",
				Help: "Search requests, labeled by path taken (cloud, fallback, empty).",
			},
			[]string{"path"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page fetch by mode ("http" or "browser").
func ObserveFetch(mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pagesFetchedTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveBrowserEscalation records a permanent switch to browser mode.
func ObserveBrowserEscalation() {
	browserEscalationsTotal.Inc()
}

// ObserveRoundsIngested adds to the processed-rounds counter.
func ObserveRoundsIngested(n int) {
	roundsIngestedTotal.Add(float64(n))
}

// ObserveStoreWriteFailure records a failed write for the given tier.
func ObserveStoreWriteFailure(tier string) {
	storeWriteFailuresTotal.WithLabelValues(tier).Inc()
}

// ObserveSearch records which retrieval path produced the response.
func ObserveSearch(path string) {
	searchesTotal.WithLabelValues(path).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
