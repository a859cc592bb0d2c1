package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-clearance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	workflowMutations *prometheus.CounterVec
	effectFailures    *prometheus.CounterVec
	intents           *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	slaTransitions    *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	mutationCount        uint64
	effectFailureCount   uint64
	deliveryFailureCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	workflowMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_mutations_total",
		Help: "Workflow mutations by outcome",
	}, []string{"outcome"})

	effectFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_effect_failures_total",
		Help: "Downstream effect failures swallowed after a committed mutation",
	}, []string{"effect"})

	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_intents_total",
		Help: "Notification intents emitted by kind",
	}, []string{"kind"})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Notification delivery attempts by result",
	}, []string{"result"})

	slaTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_sweep_updates_total",
		Help: "SLA metrics transitioned by the sweep",
	}, []string{"transition"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		workflowMutations, effectFailures, intents, deliveries, slaTransitions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		workflowMutations: workflowMutations,
		effectFailures:    effectFailures,
		intents:           intents,
		deliveries:        deliveries,
		slaTransitions:    slaTransitions,
	}
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordMutation counts a workflow mutation attempt by outcome (accepted, or the rejection code).
func (m *MetricsService) RecordMutation(outcome string) {
	if m == nil {
		return
	}
	m.workflowMutations.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.mutationCount, 1)
}

// RecordEffectFailure counts a swallowed downstream effect failure.
func (m *MetricsService) RecordEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.effectFailures.WithLabelValues(effect).Inc()
	atomic.AddUint64(&m.effectFailureCount, 1)
}

// RecordIntent counts an emitted notification intent.
func (m *MetricsService) RecordIntent(kind models.NotificationKind) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(string(kind)).Inc()
}

// RecordDelivery counts a delivery attempt.
func (m *MetricsService) RecordDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
	switch result {
	case DeliveryResultSent, DeliveryResultSuppressed, DeliveryResultSkipped:
	default:
		atomic.AddUint64(&m.deliveryFailureCount, 1)
	}
}

// RecordSLATransition counts a sweep transition (warning or breached).
func (m *MetricsService) RecordSLATransition(transition models.SLAStatus) {
	if m == nil {
		return
	}
	m.slaTransitions.WithLabelValues(string(transition)).Inc()
}

// Snapshot returns aggregated metrics suitable for the metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		WorkflowMutations:        atomic.LoadUint64(&m.mutationCount),
		EffectFailures:           atomic.LoadUint64(&m.effectFailureCount),
		DeliveryFailures:         atomic.LoadUint64(&m.deliveryFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
