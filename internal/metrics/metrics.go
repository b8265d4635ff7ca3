// Package metrics exposes Prometheus collectors for the canvas service.
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

// Result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDuplicate = "duplicate"
	ResultHeadless  = "headless"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	savesTotal                 *prometheus.CounterVec
	metadataFetchTotal         *prometheus.CounterVec
	fetchedBytesTotal          prometheus.Counter
	imageDownloadsTotal        *prometheus.CounterVec
	saveDurationSeconds        prometheus.Histogram

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call more than once; the Observe helpers call it themselves.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		)

		savesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_saves_total",
				Help: "Save-to-space requests, labeled by result (ok, duplicate, error).",
			},
			[]string{"result"},
		)

		metadataFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_metadata_fetch_total",
				Help: "Page metadata fetches, labeled by result.",
			},
			[]string{"result"},
		)

		fetchedBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "canvas_fetched_bytes_total",
				Help: "Bytes downloaded from remote sites for metadata and images.",
			},
		)

		imageDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvas_image_downloads_total",
				Help: "Image downloads, labeled by result.",
			},
			[]string{"result"},
		)

		saveDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "canvas_save_duration_seconds",
				Help:    "End-to-end latency of the save pipeline.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSave records one save-to-space outcome.
func ObserveSave(result string, duration time.Duration) {
	Init()
	savesTotal.WithLabelValues(result).Inc()
	saveDurationSeconds.Observe(duration.Seconds())
}

// ObserveMetadataFetch records a page fetch for metadata extraction.
// Pages come from arbitrary user-supplied URLs, so no host label is kept.
func ObserveMetadataFetch(result string, bytesFetched int) {
	Init()
	metadataFetchTotal.WithLabelValues(result).Inc()
	if bytesFetched > 0 {
		fetchedBytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveImageDownload records one image download attempt.
func ObserveImageDownload(result string, bytesFetched int) {
	Init()
	imageDownloadsTotal.WithLabelValues(result).Inc()
	if bytesFetched > 0 {
		fetchedBytesTotal.Add(float64(bytesFetched))
	}
}
