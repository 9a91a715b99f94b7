// Package metrics provides Prometheus metrics for the eraguess challenge service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the eraguess service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Core Business Metrics
	scoresSubmitted   prometheus.Counter
	scoreErrors       prometheus.Counter
	guessesRecorded   prometheus.Counter
	synthesisLatency  prometheus.Histogram
	percentileShown   prometheus.Counter
	percentileHidden  prometheus.Counter
	completionsTotal  prometheus.Gauge
	activeChallenges  prometheus.Gauge
	distributionReads prometheus.Counter

	// Distribution cache metrics
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheEntries prometheus.Gauge

	// Hot store metrics
	hotStoreUpdateLatency   prometheus.Histogram
	hotStoreQueryLatency    prometheus.Histogram
	hotStoreConflictRetries prometheus.Counter
	hotStoreGuessesPending  prometheus.Gauge

	// Archival metrics
	sweepRuns              prometheus.Counter
	sweepChallengeFailures prometheus.Counter
	sweepDuration          prometheus.Histogram
	challengesFinalized    prometheus.Counter
	emergencyFinalizations prometheus.Counter
	deltaBatchesArchived   prometheus.Counter
	archivedEvents         prometheus.Counter
	archiveBatchBytes      prometheus.Histogram
	archivePutErrors       prometheus.Counter

	// Queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Worker metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "eraguess",
		subsystem:        "challenge",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.scoresSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_submitted_total",
		Help:      "Total number of score submissions accepted",
	})

	m.scoreErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_errors_total",
		Help:      "Total number of rejected or failed score submissions",
	})

	m.guessesRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "guesses_recorded_total",
		Help:      "Total number of raw guess events appended to the hot store",
	})

	m.synthesisLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "curve_synthesis_latency_milliseconds",
		Help:      "Histogram of distribution curve synthesis latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.percentileShown = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "percentile_rank_shown_total",
		Help:      "Submissions whose percentile rank qualified for display (top half)",
	})

	m.percentileHidden = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "percentile_rank_hidden_total",
		Help:      "Submissions whose percentile rank was suppressed (bottom half)",
	})

	m.completionsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "completions_total",
		Help:      "Completions recorded for the most recently submitted challenge",
	})

	m.activeChallenges = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_challenges",
		Help:      "Number of challenges still collecting guess events",
	})

	m.distributionReads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "distribution_reads_total",
		Help:      "Total number of distribution read requests",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "distribution_cache_hits_total",
		Help:      "Distribution cache hits",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "distribution_cache_misses_total",
		Help:      "Distribution cache misses",
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "distribution_cache_entries",
		Help:      "Current number of cached distributions",
	})

	m.hotStoreUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hotstore_update_latency_milliseconds",
		Help:      "Hot store write transaction latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.hotStoreQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hotstore_query_latency_milliseconds",
		Help:      "Hot store read transaction latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.hotStoreConflictRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hotstore_conflict_retries_total",
		Help:      "Transaction commit conflicts retried by the hot store",
	})

	m.hotStoreGuessesPending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hotstore_guesses_pending",
		Help:      "Raw guess events currently staged in the hot store",
	})

	m.sweepRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archival_sweep_runs_total",
		Help:      "Total number of archival sweep executions",
	})

	m.sweepChallengeFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archival_sweep_challenge_failures_total",
		Help:      "Challenges whose archival processing failed within a sweep",
	})

	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archival_sweep_duration_milliseconds",
		Help:      "Archival sweep duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.challengesFinalized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "challenges_finalized_total",
		Help:      "Challenges transitioned from collecting to finalized",
	})

	m.emergencyFinalizations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "emergency_finalizations_total",
		Help:      "Finalizations triggered synchronously from the submission path",
	})

	m.deltaBatchesArchived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delta_batches_archived_total",
		Help:      "Late-arrival delta batches written to cold storage",
	})

	m.archivedEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archived_events_total",
		Help:      "Raw guess events copied into cold storage batches",
	})

	m.archiveBatchBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archive_batch_bytes",
		Help:      "Size in bytes of archive batches written to cold storage",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
	})

	m.archivePutErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "archive_put_errors_total",
		Help:      "Failed cold storage writes (retried by the next sweep)",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the guess event queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the guess event queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization ratio (size / capacity)",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Guess events enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Guess events dequeued by workers",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Enqueue attempts rejected (backpressure, closed queue)",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of guess ingestion workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Per-event worker processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Worker processing errors",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Errors grouped by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "HTTP errors grouped by endpoint, method and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordScoreSubmitted increments the accepted submissions counter.
func RecordScoreSubmitted() {
	globalManager.scoresSubmitted.Inc()
}

// RecordScoreError increments the failed submissions counter.
func RecordScoreError() {
	globalManager.scoreErrors.Inc()
}

// RecordGuessRecorded increments the recorded guesses counter.
func RecordGuessRecorded() {
	globalManager.guessesRecorded.Inc()
}

// RecordSynthesisLatency records curve synthesis latency in milliseconds.
func RecordSynthesisLatency(latencyMs float64) {
	globalManager.synthesisLatency.Observe(latencyMs)
}

// RecordPercentileShown increments the displayed-rank counter.
func RecordPercentileShown() {
	globalManager.percentileShown.Inc()
}

// RecordPercentileHidden increments the suppressed-rank counter.
func RecordPercentileHidden() {
	globalManager.percentileHidden.Inc()
}

// UpdateCompletionsTotal sets the completions gauge.
func UpdateCompletionsTotal(count int64) {
	globalManager.completionsTotal.Set(float64(count))
}

// UpdateActiveChallenges sets the collecting-challenges gauge.
func UpdateActiveChallenges(count int) {
	globalManager.activeChallenges.Set(float64(count))
}

// RecordDistributionRead increments the distribution reads counter.
func RecordDistributionRead() {
	globalManager.distributionReads.Inc()
}

// RecordCacheHit increments the distribution cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the distribution cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheEntries sets the cached distributions gauge.
func UpdateCacheEntries(count int) {
	globalManager.cacheEntries.Set(float64(count))
}

// RecordHotStoreUpdateLatency records a hot store write latency.
func RecordHotStoreUpdateLatency(latencyMs float64) {
	globalManager.hotStoreUpdateLatency.Observe(latencyMs)
}

// RecordHotStoreQueryLatency records a hot store read latency.
func RecordHotStoreQueryLatency(latencyMs float64) {
	globalManager.hotStoreQueryLatency.Observe(latencyMs)
}

// RecordHotStoreConflictRetry increments the commit-conflict retry counter.
func RecordHotStoreConflictRetry() {
	globalManager.hotStoreConflictRetries.Inc()
}

// UpdateGuessesPending sets the staged raw events gauge.
func UpdateGuessesPending(count int) {
	globalManager.hotStoreGuessesPending.Set(float64(count))
}

// RecordSweepRun increments the sweep execution counter.
func RecordSweepRun() {
	globalManager.sweepRuns.Inc()
}

// RecordSweepChallengeFailure increments the per-challenge sweep failure counter.
func RecordSweepChallengeFailure() {
	globalManager.sweepChallengeFailures.Inc()
}

// RecordSweepDuration records the duration of one sweep in milliseconds.
func RecordSweepDuration(latencyMs float64) {
	globalManager.sweepDuration.Observe(latencyMs)
}

// RecordChallengeFinalized increments the finalization counter.
func RecordChallengeFinalized() {
	globalManager.challengesFinalized.Inc()
}

// RecordEmergencyFinalization increments the inline finalization counter.
func RecordEmergencyFinalization() {
	globalManager.emergencyFinalizations.Inc()
}

// RecordDeltaBatchArchived increments the delta batch counter.
func RecordDeltaBatchArchived() {
	globalManager.deltaBatchesArchived.Inc()
}

// RecordArchivedEvents adds to the archived events counter.
func RecordArchivedEvents(count int) {
	globalManager.archivedEvents.Add(float64(count))
}

// RecordArchiveBatchBytes records the size of a written archive batch.
func RecordArchiveBatchBytes(size int) {
	globalManager.archiveBatchBytes.Observe(float64(size))
}

// RecordArchivePutError increments the failed cold storage write counter.
func RecordArchivePutError() {
	globalManager.archivePutErrors.Inc()
}

// UpdateQueueSize sets the queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization gauge.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// UpdateWorkerActiveCount sets the worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-event worker latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request by endpoint, method and status.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error by endpoint, method and type.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause time sample.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}
