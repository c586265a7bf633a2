// Package metrics provides Prometheus metrics for the punt analysis pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fit status label values.
const (
	FitStatusOK      = "ok"
	FitStatusFailed  = "failed"
	FitStatusTimeout = "timeout"
)

// iterationBuckets covers EM iteration counts up to the default cap.
var iterationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Input quality
	eventsLoaded   prometheus.Counter
	eventsDupe     prometheus.Counter
	eventsRejected *prometheus.CounterVec

	// Aggregation
	bucketsTotal      prometheus.Gauge
	bucketsDegenerate prometheus.Gauge

	// Mixture sweep
	fits           *prometheus.CounterVec
	fitLatency     *prometheus.HistogramVec
	fitIterations  prometheus.Histogram
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	workerCount    prometheus.Gauge
	selectedK      prometheus.Gauge
	bestBIC        prometheus.Gauge
	stageDurations *prometheus.GaugeVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "punts",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.eventsLoaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_loaded_total",
		Help:        "Total number of punt events read from the input source",
		ConstLabels: labels,
	})

	m.eventsDupe = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_duplicate_total",
		Help:        "Total number of duplicate punt events dropped before normalization",
		ConstLabels: labels,
	})

	m.eventsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_rejected_total",
		Help:        "Total number of punt events rejected, by stage",
		ConstLabels: labels,
	}, []string{"stage"})

	m.bucketsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "aggregate_buckets",
		Help:        "Number of non-empty (side, angle) buckets in the last aggregation",
		ConstLabels: labels,
	})

	m.bucketsDegenerate = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "aggregate_buckets_degenerate",
		Help:        "Number of buckets with fewer than two members in the last aggregation",
		ConstLabels: labels,
	})

	m.fits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fits_total",
		Help:        "Total number of mixture fits, by regime and status",
		ConstLabels: labels,
	}, []string{"regime", "status"})

	m.fitLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fit_duration_seconds",
		Help:        "Wall time of a single (k, regime) fit including restarts",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"regime"})

	m.fitIterations = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "fit_em_iterations",
		Help:        "EM iterations used by the best restart of each successful fit",
		Buckets:     iterationBuckets,
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_size",
		Help:        "Current number of fit jobs waiting in the queue",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_capacity",
		Help:        "Maximum number of fit jobs the queue can hold",
		ConstLabels: labels,
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_count",
		Help:        "Current number of running fit workers",
		ConstLabels: labels,
	})

	m.selectedK = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "selected_components",
		Help:        "Component count of the BIC-selected model",
		ConstLabels: labels,
	})

	m.bestBIC = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "selected_bic",
		Help:        "BIC of the selected model",
		ConstLabels: labels,
	})

	m.stageDurations = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stage_duration_seconds",
		Help:        "Wall time of the last run of each pipeline stage",
		ConstLabels: labels,
	}, []string{"stage"})
}

// RecordEventsLoaded adds n to the loaded events counter.
func RecordEventsLoaded(n int) {
	globalManager.eventsLoaded.Add(float64(n))
}

// RecordEventDuplicates adds n to the duplicate events counter.
func RecordEventDuplicates(n int) {
	globalManager.eventsDupe.Add(float64(n))
}

// RecordEventRejected increments the rejected counter for a stage (load, normalize).
func RecordEventRejected(stage string) {
	globalManager.eventsRejected.WithLabelValues(stage).Inc()
}

// UpdateBuckets sets the bucket gauges after an aggregation.
func UpdateBuckets(total, degenerate int) {
	globalManager.bucketsTotal.Set(float64(total))
	globalManager.bucketsDegenerate.Set(float64(degenerate))
}

// RecordFit records a completed fit attempt.
func RecordFit(regime, status string, seconds float64) {
	globalManager.fits.WithLabelValues(regime, status).Inc()
	globalManager.fitLatency.WithLabelValues(regime).Observe(seconds)
}

// RecordFitIterations records the EM iterations of a successful fit.
func RecordFitIterations(iterations int) {
	globalManager.fitIterations.Observe(float64(iterations))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateSelection records the winning model.
func UpdateSelection(k int, bic float64) {
	globalManager.selectedK.Set(float64(k))
	globalManager.bestBIC.Set(bic)
}

// UpdateStageDuration records how long a pipeline stage took.
func UpdateStageDuration(stage string, seconds float64) {
	globalManager.stageDurations.WithLabelValues(stage).Set(seconds)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the global registry in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return nil
}
