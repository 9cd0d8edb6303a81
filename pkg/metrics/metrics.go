// Package metrics exposes Prometheus metrics for ctrflow runs.
//
// # Basic Usage
//
//	// Count records per stage
//	metrics.RecordsProcessed.WithLabelValues("fit_pass_1").Inc()
//
//	// Publish the running loss of the learner
//	metrics.ProgressiveLogLoss.Set(loss)
//
//	// Measure a stage
//	timer := metrics.NewTimer("transform")
//	transformDataset(...)
//	metrics.StageDuration.WithLabelValues("transform").Observe(timer.Stop().Seconds())
//
// All collectors register with the default registry, so Handler serves
// them without further setup.
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
	// RecordsProcessed tracks records read per stage.
	// Labels: stage (fit_pass_<n>, transform, learn, score, ...)
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrflow_records_processed_total",
			Help: "Total number of records processed",
		},
		[]string{"stage"},
	)

	// FeaturesEmitted tracks encoded features written per stage.
	FeaturesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrflow_features_emitted_total",
			Help: "Total number of sparse features emitted",
		},
		[]string{"stage"},
	)

	// UnknownCategories counts categorical values absent from the fitted mapping.
	UnknownCategories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctrflow_unknown_categories_total",
			Help: "Categorical values not seen while fitting the encoder",
		},
		[]string{"field"},
	)

	// ProgressiveLogLoss is the mean log-loss of the learner's predictions
	// made before each update.
	ProgressiveLogLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctrflow_progressive_logloss",
			Help: "Mean log-loss of predictions made before each update",
		},
	)

	// FoldLogLoss is the held-out log-loss of each cross-validation fold.
	FoldLogLoss = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ctrflow_fold_logloss",
			Help: "Held-out log-loss per cross-validation fold",
		},
		[]string{"fold"},
	)

	// ModelSize is the number of weights of the last fitted model.
	ModelSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctrflow_model_weights",
			Help: "Number of weights in the last fitted model",
		},
	)

	// StageDuration tracks the wall time of each stage in seconds.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctrflow_stage_duration_seconds",
			Help:    "Stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
		[]string{"stage"},
	)

	// Throughput tracks records per second of the running stage.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ctrflow_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"stage"},
	)

	// MemoryResident tracks the resident set size of the process.
	MemoryResident = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctrflow_memory_resident_bytes",
			Help: "Resident set size of the process in bytes",
		},
	)
)

// Fold formats a fold number as a label value.
func Fold(i int) string {
	return strconv.Itoa(i)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// ThroughputTracker computes records per second over windows between
// resets. Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	stage     string
}

// NewThroughputTracker creates a tracker reporting under stage.
func NewThroughputTracker(stage string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		stage:     stage,
	}
}

// Increment adds n processed records.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	t.count += n
	t.mu.Unlock()
}

// GetAndReset returns the throughput since the last reset, publishes it
// and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(t.count) / elapsed
	}
	Throughput.WithLabelValues(t.stage).Set(throughput)

	t.count = 0
	t.lastReset = time.Now()
	return throughput
}
