// Package metrics provides Prometheus metrics for the duelist service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Duel lifecycle
	duelsCreated       prometheus.Counter
	duelsResolved      *prometheus.CounterVec
	eventsRejected     *prometheus.CounterVec
	pendingDuels       prometheus.Gauge
	resolutionLatency  prometheus.Histogram
	duelsExpired       prometheus.Counter
	resolvedCacheSize  prometheus.Gauge
	createRejected     *prometheus.CounterVec
	historyRecords     prometheus.Counter
	journaledRetries   prometheus.Counter
	notifierErrors     *prometheus.CounterVec
	scoreUpdates       prometheus.Counter
	rankChanges        *prometheus.CounterVec
	storeLatency       *prometheus.HistogramVec
	storeErrors        *prometheus.CounterVec
	storeTxConflicts   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Notification queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueLatency       prometheus.Histogram

	// Notification workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	noticesDelivered        *prometheus.CounterVec
	noticesInline           prometheus.Counter

	// Errors by dimension
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level recorders

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "duelist",
		subsystem:        "duels",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.duelsCreated = m.counter("created_total", "Total number of duels created")
	m.duelsResolved = m.counterVec("resolved_total", "Total number of duels resolved by outcome", "outcome")
	m.eventsRejected = m.counterVec("events_rejected_total", "Events rejected by a duel session or the registry", "reason")
	m.createRejected = m.counterVec("create_rejected_total", "Challenges rejected at creation", "reason")
	m.pendingDuels = m.gauge("pending", "Current number of pending duels")
	m.resolutionLatency = m.histogram("resolution_latency_milliseconds", "Time from dispatch to committed resolution", m.histogramBuckets)
	m.duelsExpired = m.counter("expired_total", "Pending duels cancelled by the stale duel reaper")
	m.resolvedCacheSize = m.gauge("resolved_cache_size", "Entries in the resolved-session cache")
	m.historyRecords = m.counter("history_records_total", "History records appended")
	m.journaledRetries = m.counter("journaled_retries_total", "Resolutions completed from a journaled partial commit")
	m.notifierErrors = m.counterVec("notifier_errors_total", "Best-effort collaborator failures", "op")
	m.scoreUpdates = m.counter("score_updates_total", "Committed score mutations")
	m.rankChanges = m.counterVec("rank_changes_total", "Rank transitions by direction", "direction")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", "backend", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "backend", "op")
	m.storeTxConflicts = m.counter("store_tx_conflicts_total", "Optimistic transaction retries in the store")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("notify_queue_size", "Notices waiting in the notification queues")
	m.queueCapacity = m.gauge("notify_queue_capacity", "Capacity of a notification queue")
	m.queueUtilization = m.gauge("notify_queue_utilization", "Notification queue utilization ratio")
	m.queueEnqueueRate = m.counter("notify_queue_enqueued_total", "Notices enqueued")
	m.queueDequeueRate = m.counter("notify_queue_dequeued_total", "Notices dequeued")
	m.queueEnqueueErrors = m.counter("notify_queue_enqueue_errors_total", "Notices rejected by a queue")
	m.queueLatency = m.histogram("notify_queue_latency_milliseconds", "Enqueue latency", m.histogramBuckets)

	m.workerActiveCount = m.gauge("notify_workers", "Notification workers running")
	m.workerProcessingLatency = m.histogram("notify_delivery_latency_milliseconds", "Notice delivery latency", m.histogramBuckets)
	m.workerErrors = m.counter("notify_delivery_errors_total", "Notice delivery failures")
	m.noticesDelivered = m.counterVec("notices_delivered_total", "Notices delivered by kind", "kind")
	m.noticesInline = m.counter("notices_inline_total", "Notices delivered inline because the queue was full")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of failed operations", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordDuelCreated increments the created duels counter.
func RecordDuelCreated() { globalManager.duelsCreated.Inc() }

// RecordDuelResolved counts a resolution by outcome (win, refused, cancelled).
func RecordDuelResolved(outcome string) { globalManager.duelsResolved.WithLabelValues(outcome).Inc() }

// RecordEventRejected counts an event that did not transition a session.
func RecordEventRejected(reason string) { globalManager.eventsRejected.WithLabelValues(reason).Inc() }

// RecordCreateRejected counts a challenge refused by registry policy.
func RecordCreateRejected(reason string) { globalManager.createRejected.WithLabelValues(reason).Inc() }

// UpdatePendingDuels sets the pending duel gauge.
func UpdatePendingDuels(n int) { globalManager.pendingDuels.Set(float64(n)) }

// RecordResolutionLatency observes dispatch-to-commit latency.
func RecordResolutionLatency(latencyMs float64) { globalManager.resolutionLatency.Observe(latencyMs) }

// RecordDuelExpired counts a reaper cancellation.
func RecordDuelExpired() { globalManager.duelsExpired.Inc() }

// UpdateResolvedCacheSize sets the resolved-session cache gauge.
func UpdateResolvedCacheSize(n int64) { globalManager.resolvedCacheSize.Set(float64(n)) }

// RecordHistoryAppend counts an appended history record.
func RecordHistoryAppend() { globalManager.historyRecords.Inc() }

// RecordJournaledRetry counts a resolution finished from its journal.
func RecordJournaledRetry() { globalManager.journaledRetries.Inc() }

// RecordNotifierError counts a failed collaborator call.
func RecordNotifierError(op string) { globalManager.notifierErrors.WithLabelValues(op).Inc() }

// RecordScoreUpdate counts committed score mutations.
func RecordScoreUpdate(n int) { globalManager.scoreUpdates.Add(float64(n)) }

// RecordRankChange counts a rank transition (promotion, demotion, initial).
func RecordRankChange(direction string) { globalManager.rankChanges.WithLabelValues(direction).Inc() }

// RecordStoreLatency observes a store operation.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, op string) { globalManager.storeErrors.WithLabelValues(backend, op).Inc() }

// RecordStoreTxConflict counts an optimistic transaction retry.
func RecordStoreTxConflict() { globalManager.storeTxConflicts.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the number of queued notices.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the per-queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) { globalManager.queueLatency.Observe(latencyMs) }

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records delivery latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the delivery error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordNoticeDelivered counts a delivered notice by kind.
func RecordNoticeDelivered(kind string) { globalManager.noticesDelivered.WithLabelValues(kind).Inc() }

// RecordNoticeInline counts a notice delivered on the caller's goroutine.
func RecordNoticeInline() { globalManager.noticesInline.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by the package recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
