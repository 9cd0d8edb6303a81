// Package progress logs the advance of long single-threaded traversals.
//
// A Reporter is driven by the traversal itself: every call to Tick counts
// one record, and every Nth record emits a log line with the rate since the
// previous report and the resident memory of the process.
package progress

import (
	"os"
	"time"

	"github.com/ajitpratap0/ctrflow/pkg/metrics"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Reporter tracks and reports progress of one stage. It is not safe for
// concurrent use; each fold owns its own reporter.
type Reporter struct {
	logger *zap.Logger
	stage  string
	every  int64

	processed      int64
	startTime      time.Time
	lastReportTime time.Time
	lastReported   int64

	proc *process.Process
}

// Snapshot is a point-in-time view of a stage.
type Snapshot struct {
	Processed  int64
	Elapsed    time.Duration
	Throughput float64
	RSS        uint64
}

// New creates a reporter that logs every n records. n <= 0 disables the
// periodic log lines; counting and the final summary remain. stage labels
// the metrics only: the logger is expected to carry the stage already, as
// one from logger.FromContext does.
func New(logger *zap.Logger, stage string, every int) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	r := &Reporter{
		logger:         logger,
		stage:          stage,
		every:          int64(every),
		startTime:      now,
		lastReportTime: now,
	}
	// RSS is best effort; platforms without /proc report zero.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil { //nolint:gosec
		r.proc = proc
	}
	return r
}

// Tick counts one record and reports when the period is reached. Extra
// fields are attached to the periodic line only.
func (r *Reporter) Tick(fields ...zap.Field) {
	r.processed++
	metrics.RecordsProcessed.WithLabelValues(r.stage).Inc()
	if r.every <= 0 || r.processed%r.every != 0 {
		return
	}
	r.report(fields)
}

// Processed returns the number of records counted so far.
func (r *Reporter) Processed() int64 {
	return r.processed
}

// Snapshot returns the current progress
func (r *Reporter) Snapshot() Snapshot {
	elapsed := time.Since(r.startTime)
	s := Snapshot{
		Processed: r.processed,
		Elapsed:   elapsed,
		RSS:       r.rss(),
	}
	if elapsed > 0 {
		s.Throughput = float64(r.processed) / elapsed.Seconds()
	}
	return s
}

// Finish logs the summary of the stage and returns it.
func (r *Reporter) Finish(fields ...zap.Field) Snapshot {
	s := r.Snapshot()
	metrics.StageDuration.WithLabelValues(r.stage).Observe(s.Elapsed.Seconds())
	r.logger.Info("stage completed", append([]zap.Field{
		zap.Int64("total_processed", s.Processed),
		zap.Duration("total_time", s.Elapsed),
		zap.Float64("avg_throughput", s.Throughput),
	}, fields...)...)
	return s
}

func (r *Reporter) report(extra []zap.Field) {
	now := time.Now()
	interval := now.Sub(r.lastReportTime)
	throughput := 0.0
	if interval > 0 {
		throughput = float64(r.processed-r.lastReported) / interval.Seconds()
	}
	rss := r.rss()

	metrics.Throughput.WithLabelValues(r.stage).Set(throughput)
	if rss > 0 {
		metrics.MemoryResident.Set(float64(rss))
	}

	fields := []zap.Field{
		zap.Int64("processed", r.processed),
		zap.Float64("throughput", throughput),
		zap.Duration("elapsed", now.Sub(r.startTime)),
		zap.Uint64("rss_bytes", rss),
	}
	r.logger.Info("progress update", append(fields, extra...)...)

	r.lastReportTime = now
	r.lastReported = r.processed
}

func (r *Reporter) rss() uint64 {
	if r.proc == nil {
		return 0
	}
	info, err := r.proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return info.RSS
}
