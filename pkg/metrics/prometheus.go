// Package metrics provides Prometheus metrics for the pitwall feature pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every pipeline metric.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Event store
	eventsNormalized  prometheus.Counter
	unparsableValues  *prometheus.CounterVec
	duplicatesDropped prometheus.Counter

	// Indexer / aggregator
	timelines          *prometheus.CounterVec
	snapshotsEmitted   *prometheus.CounterVec
	aggregationErrors  *prometheus.CounterVec
	aggregationLatency *prometheus.HistogramVec

	// Joiner / labeler
	joinMisses     *prometheus.CounterVec
	rowsFiltered   *prometheus.CounterVec
	matrixRows     prometheus.Gauge
	imputedValues  *prometheus.CounterVec
	stageDurations *prometheus.HistogramVec

	// Worker pool / job queue
	workerCount   prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueSize     prometheus.Gauge
	queueRejected prometheus.Counter
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps Go runtime collectors out of the export

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitwall",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.eventsNormalized = auto.NewCounter(m.counterOpts("events_normalized_total",
		"Total number of result rows normalized into events"))
	m.unparsableValues = auto.NewCounterVec(m.counterOpts("unparsable_values_total",
		"Values degraded to MISSING during type coercion, by column"), []string{"column"})
	m.duplicatesDropped = auto.NewCounter(m.counterOpts("duplicates_dropped_total",
		"Result rows dropped because their (raceId, driverId) pair was already seen"))

	m.timelines = auto.NewCounterVec(m.counterOpts("timelines_total",
		"Timelines built, by dimension"), []string{"dimension"})
	m.snapshotsEmitted = auto.NewCounterVec(m.counterOpts("snapshots_emitted_total",
		"Feature snapshots emitted, by dimension"), []string{"dimension"})
	m.aggregationErrors = auto.NewCounterVec(m.counterOpts("aggregation_errors_total",
		"Timelines whose aggregation failed, by dimension"), []string{"dimension"})
	m.aggregationLatency = auto.NewHistogramVec(m.histogramOpts("aggregation_latency_milliseconds",
		"Per-timeline aggregation latency in milliseconds"), []string{"dimension"})

	m.joinMisses = auto.NewCounterVec(m.counterOpts("join_misses_total",
		"Rows whose dimension lookup found no snapshot, by dimension"), []string{"dimension"})
	m.rowsFiltered = auto.NewCounterVec(m.counterOpts("rows_filtered_total",
		"Rows dropped by the eligibility rule, by reason"), []string{"reason"})
	m.matrixRows = auto.NewGauge(m.gaugeOpts("matrix_rows",
		"Rows in the last emitted feature matrix"))
	m.imputedValues = auto.NewCounterVec(m.counterOpts("imputed_values_total",
		"MISSING feature values replaced by imputation, by column"), []string{"column"})
	m.stageDurations = auto.NewHistogramVec(m.histogramOpts("stage_duration_milliseconds",
		"Wall time of each pipeline stage in milliseconds"), []string{"stage"})

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Aggregation workers in the pool"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Capacity of the timeline job queue"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Timeline jobs waiting to be aggregated"))
	m.queueRejected = auto.NewCounter(m.counterOpts("queue_rejected_total",
		"Timeline jobs rejected because the queue was closed or the context ended"))
}

// RecordEventsNormalized adds n normalized events.
func RecordEventsNormalized(n int) {
	globalManager.eventsNormalized.Add(float64(n))
}

// RecordUnparsableValues adds n values of column degraded to MISSING.
func RecordUnparsableValues(column string, n int) {
	globalManager.unparsableValues.WithLabelValues(column).Add(float64(n))
}

// RecordDuplicateDropped counts one dropped duplicate result row.
func RecordDuplicateDropped() {
	globalManager.duplicatesDropped.Inc()
}

// RecordTimelines adds n timelines built for dimension.
func RecordTimelines(dimension string, n int) {
	globalManager.timelines.WithLabelValues(dimension).Add(float64(n))
}

// RecordSnapshots adds n snapshots emitted for dimension.
func RecordSnapshots(dimension string, n int) {
	globalManager.snapshotsEmitted.WithLabelValues(dimension).Add(float64(n))
}

// RecordAggregationError counts one failed timeline.
func RecordAggregationError(dimension string) {
	globalManager.aggregationErrors.WithLabelValues(dimension).Inc()
}

// RecordAggregationLatency observes one timeline's aggregation latency.
func RecordAggregationLatency(dimension string, latencyMs float64) {
	globalManager.aggregationLatency.WithLabelValues(dimension).Observe(latencyMs)
}

// RecordJoinMiss counts one failed dimension lookup.
func RecordJoinMiss(dimension string) {
	globalManager.joinMisses.WithLabelValues(dimension).Inc()
}

// RecordRowFiltered counts one row dropped by the eligibility rule.
func RecordRowFiltered(reason string) {
	globalManager.rowsFiltered.WithLabelValues(reason).Inc()
}

// UpdateMatrixRows sets the emitted matrix row count.
func UpdateMatrixRows(n int) {
	globalManager.matrixRows.Set(float64(n))
}

// RecordImputed adds n imputed values for column.
func RecordImputed(column string, n int) {
	globalManager.imputedValues.WithLabelValues(column).Add(float64(n))
}

// RecordStageDuration observes a pipeline stage's wall time.
func RecordStageDuration(stage string, durationMs float64) {
	globalManager.stageDurations.WithLabelValues(stage).Observe(durationMs)
}

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

// UpdateQueueCapacity sets the job queue capacity.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// UpdateQueueSize sets the number of waiting jobs.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// RecordQueueRejected counts one rejected job.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the registry in the text exposition format to path,
// for the node exporter textfile collector. Batch runs have no scrape endpoint.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return nil
}
