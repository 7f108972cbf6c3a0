// Package metrics exposes Prometheus collectors for the reporter service.
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
	reporterJobsTotal          *prometheus.CounterVec
	reporterArticlesTotal      *prometheus.CounterVec
	reporterImagesTotal        *prometheus.CounterVec
	reporterUploadsTotal       *prometheus.CounterVec
	reporterActiveWorkers      prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		reporterJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_jobs_total",
				Help: "Total number of report jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		reporterArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_articles_total",
				Help: "Total number of articles accepted into reports, labeled by source kind.",
			},
			[]string{"source"},
		)

		reporterImagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_images_total",
				Help: "Total number of image candidates processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		reporterUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reporter_uploads_total",
				Help: "Total number of image upload attempts, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		reporterActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reporter_active_workers",
				Help: "Number of workers currently processing a job.",
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	reporterJobsTotal.WithLabelValues(status).Inc()
}

// ObserveArticle increments the accepted-article counter for a source kind.
func ObserveArticle(source string) {
	reporterArticlesTotal.WithLabelValues(source).Inc()
}

// ObserveImage increments the image-candidate counter for an outcome.
func ObserveImage(outcome string) {
	reporterImagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpload increments the upload-attempt counter.
func ObserveUpload(host, outcome string) {
	reporterUploadsTotal.WithLabelValues(host, outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	reporterActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	reporterActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
