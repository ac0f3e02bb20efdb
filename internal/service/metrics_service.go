package service

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

// Student outcomes recorded per reconciliation attempt.
const (
	OutcomeReconciled = "reconciled"
	OutcomeSkipped    = "skipped"
	OutcomeRejected   = "rejected"
)

// MetricsService encapsulates Prometheus instrumentation for batch runs and the HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheHitRatio   prometheus.Gauge
	students        *prometheus.CounterVec
	studentDuration prometheus.Histogram
	journeys        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	batchDuration   prometheus.Histogram
	lastBatch       prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_cache_hits_total",
		Help: "Student history lookups served from cache",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_cache_misses_total",
		Help: "Student history lookups computed from the ledger",
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "history_cache_hit_ratio",
		Help: "Ratio of cache hits to total history lookups",
	})

	students := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_students_total",
		Help: "Students attempted, by outcome",
	}, []string{"outcome"})

	studentDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciler_student_duration_seconds",
		Help:    "Time spent reconciling one student",
		Buckets: prometheus.DefBuckets,
	})

	journeys := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_journeys_created_total",
		Help: "Journeys written, by confidence tier",
	}, []string{"tier"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_rejections_total",
		Help: "Students rejected, by category",
	}, []string{"category"})

	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciler_batch_duration_seconds",
		Help:    "Wall time of a reconciliation run",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	lastBatch := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reconciler_last_batch_completed_timestamp_seconds",
		Help: "Unix time the last reconciliation run finished",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, cacheHitRatio,
		students, studentDuration, journeys, rejections, batchDuration, lastBatch, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheHitRatio:   cacheHitRatio,
		students:        students,
		studentDuration: studentDuration,
		journeys:        journeys,
		rejections:      rejections,
		batchDuration:   batchDuration,
		lastBatch:       lastBatch,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records history cache hits and misses and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveStudent records one student's outcome and processing time.
func (m *MetricsService) ObserveStudent(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.students.WithLabelValues(outcome).Inc()
	m.studentDuration.Observe(duration.Seconds())
}

// ObserveJourney counts a written journey under its tier.
func (m *MetricsService) ObserveJourney(tier models.ConfidenceTier) {
	if m == nil {
		return
	}
	m.journeys.WithLabelValues(string(tier)).Inc()
}

// ObserveRejection counts a rejected student under its category.
func (m *MetricsService) ObserveRejection(category models.RejectionCategory) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(category)).Inc()
}

// ObserveBatch records the duration and completion time of a run.
func (m *MetricsService) ObserveBatch(summary *models.BatchSummary) {
	if m == nil || summary == nil {
		return
	}
	m.batchDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	m.lastBatch.Set(float64(summary.FinishedAt.Unix()))
}

// Push sends the registry to a Prometheus Pushgateway. CLI runs are short-lived,
// so they push once at the end instead of being scraped.
func (m *MetricsService) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
