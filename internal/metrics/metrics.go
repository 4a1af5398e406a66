// Package metrics exposes Prometheus collectors for the news services.
package metrics

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
	collectionRunsTotal        *prometheus.CounterVec
	collectionDurationSeconds  prometheus.Histogram
	collectionActive           prometheus.Gauge
	recordsTotal               *prometheus.CounterVec
	enrichmentTotal            *prometheus.CounterVec
	degradedTotal              *prometheus.CounterVec
	sourceRequestsTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		collectionRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_collection_runs_total",
				Help: "Total number of collection runs, labeled by status.",
			},
			[]string{"status"},
		)

		collectionDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "news_collection_duration_seconds",
				Help:    "Histogram of collection run durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		collectionActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "news_collection_active",
				Help: "1 while a collection run holds the single-flight flag.",
			},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_records_total",
				Help: "Records seen by the collector, labeled by stage (fetched, new, saved, failed).",
			},
			[]string{"stage"},
		)

		enrichmentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_enrichment_total",
				Help: "Image enrichment outcomes, labeled by final state.",
			},
			[]string{"state"},
		)

		degradedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_degraded_total",
				Help: "Degraded paths that were absorbed instead of failing a run, labeled by kind.",
			},
			[]string{"kind"},
		)

		sourceRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "news_source_requests_total",
				Help: "Search API calls, labeled by HTTP status code.",
			},
			[]string{"code"},
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

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "news_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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
	Init()
	return promhttp.Handler()
}

// ObserveRun records a finished collection run.
func ObserveRun(status string, duration time.Duration) {
	Init()
	collectionRunsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		collectionDurationSeconds.Observe(duration.Seconds())
	}
}

// SetCollectionActive flips the active-run gauge.
func SetCollectionActive(active bool) {
	Init()
	if active {
		collectionActive.Set(1)
		return
	}
	collectionActive.Set(0)
}

// ObserveRecords adds n records to the given stage counter.
func ObserveRecords(stage string, n int) {
	Init()
	if n > 0 {
		recordsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveEnrichment counts one per-record enrichment outcome.
func ObserveEnrichment(state string) {
	Init()
	enrichmentTotal.WithLabelValues(state).Inc()
}

// ObserveDegraded counts an absorbed failure of the given kind.
func ObserveDegraded(kind string) {
	Init()
	degradedTotal.WithLabelValues(kind).Inc()
}

// ObserveSourceRequest counts one search API call by response code (0 for transport errors).
func ObserveSourceRequest(code int) {
	Init()
	sourceRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
