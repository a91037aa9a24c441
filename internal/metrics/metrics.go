// Package metrics exposes Prometheus collectors for ingestion runs.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry *prometheus.Registry

	ingestItemsTotal         *prometheus.CounterVec
	ingestDurationSeconds    *prometheus.HistogramVec
	fetchAttemptsTotal       *prometheus.CounterVec
	fetchPagesTotal          *prometheus.CounterVec
	artifactBytesTotal       *prometheus.CounterVec
	retryEnqueuedTotal       *prometheus.CounterVec
	apiRateLimitDelaySeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the collectors on a dedicated registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		ingestItemsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_ingest_items_total",
				Help: "Total number of ingested items, labeled by content type and terminal status.",
			},
			[]string{"content_type", "status"},
		)

		ingestDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atlas_ingest_duration_seconds",
				Help:    "Histogram of per-item ingest latency, labeled by content type.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 30, 60, 300},
			},
			[]string{"content_type"},
		)

		fetchAttemptsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_fetch_attempts_total",
				Help: "Total number of fetch strategy attempts, labeled by strategy and outcome.",
			},
			[]string{"strategy", "status"},
		)

		fetchPagesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_fetch_pages_total",
				Help: "Total number of article fetch cascades, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		artifactBytesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_artifact_bytes_total",
				Help: "Total number of bytes written, labeled by content type and artifact kind.",
			},
			[]string{"content_type", "kind"},
		)

		retryEnqueuedTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atlas_retry_enqueued_total",
				Help: "Total number of items handed to the retry queue, labeled by content type.",
			},
			[]string{"content_type"},
		)

		apiRateLimitDelaySeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atlas_api_rate_limit_delay_seconds",
				Help:    "Histogram of client-side pacing waits, labeled by API.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"api"},
		)
	})
}

// Registry returns the registry the collectors live in.
func Registry() *prometheus.Registry {
	Init()
	return registry
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
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

// ObserveIngest records one item reaching a terminal status.
func ObserveIngest(contentType, status string, duration time.Duration) {
	Init()
	ingestItemsTotal.WithLabelValues(contentType, status).Inc()
	ingestDurationSeconds.WithLabelValues(contentType).Observe(duration.Seconds())
}

// ObserveFetchAttempt records one strategy attempt.
func ObserveFetchAttempt(strategy, status string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(strategy, status).Inc()
}

// ObservePage records the outcome of a full cascade for rawURL.
func ObservePage(rawURL, status string) {
	Init()
	fetchPagesTotal.WithLabelValues(SanitizeSite(rawURL), status).Inc()
}

// ObserveBytes adds n written bytes for an artifact kind.
func ObserveBytes(contentType, kind string, n int64) {
	if n <= 0 {
		return
	}
	Init()
	artifactBytesTotal.WithLabelValues(contentType, kind).Add(float64(n))
}

// ObserveRetry increments the retry counter for a content type.
func ObserveRetry(contentType string) {
	Init()
	retryEnqueuedTotal.WithLabelValues(contentType).Inc()
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(api string, duration time.Duration) {
	Init()
	apiRateLimitDelaySeconds.WithLabelValues(api).Observe(duration.Seconds())
}

// WriteTextfile writes every collector to path in the node_exporter textfile
// format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
