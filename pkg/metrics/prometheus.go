// Package metrics provides Prometheus metrics for the ctfboard service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultSystemInterval = 10 * time.Second

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	systemInterval   time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Boards
	boardRequests       *prometheus.CounterVec
	boardComputations   *prometheus.CounterVec
	boardComputeLatency *prometheus.HistogramVec
	boardSize           *prometheus.GaugeVec

	// Board cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec

	// Repository
	repositoryQueryLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Refresh queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	refreshDuplicates  prometheus.Counter

	// Refresh workers
	workerActiveCount     prometheus.Gauge
	workerRefreshes       *prometheus.CounterVec
	workerRefreshDuration prometheus.Histogram

	// Live boards
	liveSubscribers prometheus.Gauge
	liveBroadcasts  prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts, registered on a
// fresh registry that GetRegistry then returns. Call it before serving.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	manager := NewManager(append([]Option{WithRegistry(registry)}, opts...)...)
	customRegistry = registry
	globalManager = manager
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ctfboard",
		subsystem:        "boards",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		systemInterval:   defaultSystemInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.boardRequests = auto.NewCounterVec(
		m.counterOpts("requests_total", "Board requests by board kind and cache result"),
		[]string{"board", "result"})
	m.boardComputations = auto.NewCounterVec(
		m.counterOpts("computations_total", "Board recomputations by board kind"),
		[]string{"board"})
	m.boardComputeLatency = auto.NewHistogramVec(
		m.histogramOpts("compute_latency_milliseconds", "Board computation latency in milliseconds"),
		[]string{"board"})
	m.boardSize = auto.NewGaugeVec(
		m.gaugeOpts("size_entries", "Number of entries on the last computed board"),
		[]string{"board"})

	m.cacheHits = auto.NewCounter(m.counterOpts("cache_hits_total", "Board cache hits"))
	m.cacheMisses = auto.NewCounter(m.counterOpts("cache_misses_total", "Board cache misses, including expired entries"))
	m.cacheErrors = auto.NewCounterVec(
		m.counterOpts("cache_errors_total", "Board cache failures treated as misses"),
		[]string{"op"})

	m.repositoryQueryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_query_latency_milliseconds", "Score store and window registry query latency"),
		[]string{"op"})

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("refresh_queue_size", "Pending board refresh requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("refresh_queue_capacity", "Refresh queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("refresh_queue_utilization_ratio", "Refresh queue fill ratio"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("refresh_queue_enqueued_total", "Refresh requests enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("refresh_queue_dequeued_total", "Refresh requests dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("refresh_queue_enqueue_errors_total", "Refresh requests rejected by the queue"))
	m.refreshDuplicates = auto.NewCounter(m.counterOpts("refresh_duplicates_total", "Refresh requests dropped because one was already pending"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("refresh_workers", "Running refresh workers"))
	m.workerRefreshes = auto.NewCounterVec(
		m.counterOpts("refreshes_total", "Board refreshes by result"),
		[]string{"result"})
	m.workerRefreshDuration = auto.NewHistogram(
		m.histogramOpts("refresh_duration_milliseconds", "Board refresh duration in milliseconds"))

	m.liveSubscribers = auto.NewGauge(m.gaugeOpts("live_subscribers", "Connected live board websocket clients"))
	m.liveBroadcasts = auto.NewCounter(m.counterOpts("live_broadcasts_total", "Live board updates pushed to rooms"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
}

func on() bool { return globalManager != nil && globalManager.enabled }

// Board metrics.

// RecordBoardRequest counts a board lookup; result is hit, miss or error.
func RecordBoardRequest(board, result string) {
	if on() {
		globalManager.boardRequests.WithLabelValues(board, result).Inc()
	}
}

// RecordBoardComputation records one recomputation and its size.
func RecordBoardComputation(board string, latencyMs float64, entries int) {
	if !on() {
		return
	}
	globalManager.boardComputations.WithLabelValues(board).Inc()
	globalManager.boardComputeLatency.WithLabelValues(board).Observe(latencyMs)
	globalManager.boardSize.WithLabelValues(board).Set(float64(entries))
}

// Cache metrics.

func RecordCacheHit() {
	if on() {
		globalManager.cacheHits.Inc()
	}
}

func RecordCacheMiss() {
	if on() {
		globalManager.cacheMisses.Inc()
	}
}

// RecordCacheError counts a failed cache get or set.
func RecordCacheError(op string) {
	if on() {
		globalManager.cacheErrors.WithLabelValues(op).Inc()
	}
}

// RecordRepositoryQueryLatency observes a store query duration.
func RecordRepositoryQueryLatency(op string, latencyMs float64) {
	if on() {
		globalManager.repositoryQueryLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// HTTP metrics.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Queue metrics.

func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

func UpdateQueueUtilization(utilization float64) {
	if on() {
		globalManager.queueUtilization.Set(utilization)
	}
}

func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueueRate.Inc()
	}
}

func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeueRate.Inc()
	}
}

func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

func RecordRefreshDuplicate() {
	if on() {
		globalManager.refreshDuplicates.Inc()
	}
}

// Worker metrics.

func UpdateWorkerActiveCount(count int) {
	if on() {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

// RecordRefresh counts a worker refresh; result is ok or error.
func RecordRefresh(result string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.workerRefreshes.WithLabelValues(result).Inc()
	globalManager.workerRefreshDuration.Observe(latencyMs)
}

// Live board metrics.

func UpdateLiveSubscribers(count int) {
	if on() {
		globalManager.liveSubscribers.Set(float64(count))
	}
}

func RecordLiveBroadcast() {
	if on() {
		globalManager.liveBroadcasts.Inc()
	}
}

// Error metrics.

func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if on() {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System metrics.

func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RunSystemCollector samples runtime statistics until ctx is done.
func RunSystemCollector(ctx context.Context) {
	interval := defaultSystemInterval
	if globalManager != nil {
		interval = globalManager.systemInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		UpdateSystemMemoryUsage(ms.HeapInuse)
		UpdateSystemGoroutineCount(runtime.NumGoroutine())
	}

	sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
