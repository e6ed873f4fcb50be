// Package metrics exposes Prometheus collectors for the scrape service.
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
	jobsSubmittedTotal         *prometheus.CounterVec
	jobsCompletedTotal         *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	reviewPagesTotal           prometheus.Counter
	extractionFallbacksTotal   *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsSubmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_submitted_total",
				Help: "Total number of jobs submitted, labeled by task.",
			},
			[]string{"task"},
		)

		jobsCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_completed_total",
				Help: "Total number of jobs reaching a terminal state, labeled by task and status.",
			},
			[]string{"task", "status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_workers",
				Help: "Number of workers currently executing a job.",
			},
		)

		reviewPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_review_pages_total",
				Help: "Total number of review pages processed by the pagination controller.",
			},
		)

		extractionFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_extraction_fallbacks_total",
				Help: "Total number of extractions that fell back to a lower level, labeled by task.",
			},
			[]string{"task"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency, labeled by method, route, and code.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "code"},
		)
	})
}

// JobSubmitted increments the submission counter for a task.
func JobSubmitted(task string) {
	if jobsSubmittedTotal != nil {
		jobsSubmittedTotal.WithLabelValues(task).Inc()
	}
}

// JobCompleted increments the completion counter for a task and terminal
// status.
func JobCompleted(task, status string) {
	if jobsCompletedTotal != nil {
		jobsCompletedTotal.WithLabelValues(task, status).Inc()
	}
}

// WorkerStarted marks a worker as busy.
func WorkerStarted() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// WorkerDone marks a worker as idle again.
func WorkerDone() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ReviewPagesProcessed adds to the processed page counter.
func ReviewPagesProcessed(n int) {
	if reviewPagesTotal != nil && n > 0 {
		reviewPagesTotal.Add(float64(n))
	}
}

// ExtractionFellBack counts an observed level fallback for a task.
func ExtractionFellBack(task string) {
	if extractionFallbacksTotal != nil {
		extractionFallbacksTotal.WithLabelValues(task).Inc()
	}
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestDurationSeconds != nil {
		httpRequestDurationSeconds.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
	}
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
