// Package metrics provides Prometheus metrics for the evaluation harness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultLatencyBuckets covers sub-millisecond recommend calls up to multi-second batch trains.
var defaultLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000} //nolint:gochecknoglobals // default bucket layout

// Manager owns all harness metrics.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Dataset
	datasetItems    prometheus.Gauge
	datasetClicks   prometheus.Gauge
	clicksDuplicate prometheus.Counter
	clicksFiltered  prometheus.Counter
	clicksDropped   prometheus.Counter
	workPackages    prometheus.Gauge

	// Replay
	packagesProcessed *prometheus.CounterVec
	recommendLatency  *prometheus.HistogramVec
	trainLatency      *prometheus.HistogramVec
	algorithmProgress *prometheus.GaugeVec
	overallProgress   prometheus.Gauge
	runsStarted       prometheus.Counter
	runsCompleted     prometheus.Counter
	runsFailed        prometheus.Counter
	resultsWritten    prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueTotal  prometheus.Counter
	queueDequeueTotal  prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerCount       prometheus.Gauge
	workerBusyCount   prometheus.Gauge
	workerTaskSeconds prometheus.Histogram
	workerErrors      prometheus.Counter

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "streamrec",
		subsystem:      "evaluation",
		latencyBuckets: defaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.datasetItems = m.gauge("dataset_items", "Number of items loaded")
	m.datasetClicks = m.gauge("dataset_clicks", "Number of clicks kept after loading and filtering")
	m.clicksDuplicate = m.counter("clicks_duplicate_total", "Clicks removed by deduplication")
	m.clicksFiltered = m.counter("clicks_filtered_total", "Clicks removed by the session length filter")
	m.clicksDropped = m.counter("clicks_dropped_total", "Clicks referencing unknown items")
	m.workPackages = m.gauge("work_packages", "Size of the shared replay sequence")

	m.packagesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "packages_processed_total",
		Help: "Work packages replayed per algorithm and kind",
	}, []string{"algorithm", "kind"})

	m.recommendLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "recommend_latency_milliseconds",
		Help:    "Latency of recommend calls in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"algorithm"})

	m.trainLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "train_latency_milliseconds",
		Help:    "Latency of train calls in milliseconds by phase (bulk, incremental)",
		Buckets: m.latencyBuckets,
	}, []string{"algorithm", "phase"})

	m.algorithmProgress = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "algorithm_progress_percent",
		Help: "Replay progress per algorithm",
	}, []string{"algorithm"})

	m.overallProgress = m.gauge("overall_progress_percent", "Aggregate replay progress across all algorithms")
	m.runsStarted = m.counter("runs_started_total", "Algorithm replays started")
	m.runsCompleted = m.counter("runs_completed_total", "Algorithm replays completed")
	m.runsFailed = m.counter("runs_failed_total", "Algorithm replays that failed")
	m.resultsWritten = m.counter("results_written_total", "Result lines written to the results file")

	m.queueSize = m.gauge("queue_size", "Tasks waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size over capacity")
	m.queueEnqueueTotal = m.counter("queue_enqueue_total", "Tasks enqueued")
	m.queueDequeueTotal = m.counter("queue_dequeue_total", "Tasks dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Rejected enqueue attempts")

	m.workerCount = m.gauge("worker_count", "Workers in the pool")
	m.workerBusyCount = m.gauge("worker_busy_count", "Workers currently running a task")
	m.workerTaskSeconds = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "worker_task_duration_seconds",
		Help:    "Wall-clock duration of a complete task",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	})
	m.workerErrors = m.counter("worker_errors_total", "Tasks that returned an error or panicked")

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "errors_by_component_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "system_gc_pause_milliseconds",
		Help:    "Average GC pause in milliseconds",
		Buckets: m.latencyBuckets,
	})
}

// Dataset Metrics Functions.

// UpdateDatasetSize records the loaded dataset size.
func UpdateDatasetSize(items, clicks int) {
	globalManager.datasetItems.Set(float64(items))
	globalManager.datasetClicks.Set(float64(clicks))
}

// RecordClicksDuplicate adds n deduplicated clicks.
func RecordClicksDuplicate(n int) {
	globalManager.clicksDuplicate.Add(float64(n))
}

// RecordClicksFiltered adds n clicks removed by the session length filter.
func RecordClicksFiltered(n int) {
	globalManager.clicksFiltered.Add(float64(n))
}

// RecordClicksDropped adds n clicks that referenced unknown items.
func RecordClicksDropped(n int) {
	globalManager.clicksDropped.Add(float64(n))
}

// UpdateWorkPackages sets the size of the replay sequence.
func UpdateWorkPackages(n int) {
	globalManager.workPackages.Set(float64(n))
}

// Replay Metrics Functions.

// RecordPackageProcessed counts one replayed package of the given kind.
func RecordPackageProcessed(algorithm, kind string) {
	globalManager.packagesProcessed.WithLabelValues(algorithm, kind).Inc()
}

// RecordRecommendLatency records the latency of one recommend call.
func RecordRecommendLatency(algorithm string, latencyMs float64) {
	globalManager.recommendLatency.WithLabelValues(algorithm).Observe(latencyMs)
}

// RecordTrainLatency records the latency of one train call.
func RecordTrainLatency(algorithm, phase string, latencyMs float64) {
	globalManager.trainLatency.WithLabelValues(algorithm, phase).Observe(latencyMs)
}

// UpdateAlgorithmProgress sets the replay progress of one algorithm.
func UpdateAlgorithmProgress(algorithm string, percent int) {
	globalManager.algorithmProgress.WithLabelValues(algorithm).Set(float64(percent))
}

// UpdateOverallProgress sets the aggregate progress.
func UpdateOverallProgress(percent float64) {
	globalManager.overallProgress.Set(percent)
}

// RecordRunStarted counts a started replay.
func RecordRunStarted() {
	globalManager.runsStarted.Inc()
}

// RecordRunCompleted counts a completed replay.
func RecordRunCompleted() {
	globalManager.runsCompleted.Inc()
}

// RecordRunFailed counts a failed replay.
func RecordRunFailed() {
	globalManager.runsFailed.Inc()
}

// RecordResultWritten counts a result line written.
func RecordResultWritten() {
	globalManager.resultsWritten.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the number of queued tasks.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerBusyCount sets the number of busy workers.
func UpdateWorkerBusyCount(count int) {
	globalManager.workerBusyCount.Set(float64(count))
}

// RecordWorkerTaskDuration records how long a task ran.
func RecordWorkerTaskDuration(seconds float64) {
	globalManager.workerTaskSeconds.Observe(seconds)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
