package domain

import (
	"fmt"
	"log/slog"
	"time"

	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects pipeline counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry      *prometheus.Registry
	outcomes      *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	duration      prometheus.Histogram
	attempts      *prometheus.CounterVec
	backups       prometheus.Gauge
}

// NewMetrics registers the pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jarvis",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by outcome status.",
		}, []string{"status"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jarvis",
			Name:      "pipeline_stage_failures_total",
			Help:      "Pipeline failures by stage.",
		}, []string{"stage"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "jarvis",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jarvis",
			Name:      "generation_attempts_total",
			Help:      "Calls to the change-generating service.",
		}, []string{"operation", "result"}),
		backups: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "jarvis",
			Name:      "backups_retained",
			Help:      "Backup sets kept after rotation.",
		}),
	}
}

// Registry exposes the underlying registry.
func (mt *Metrics) Registry() *prometheus.Registry {
	if mt == nil {
		return nil
	}

	return mt.registry
}

// ObserveOutcome counts a finished run.
func (mt *Metrics) ObserveOutcome(status m.OutcomeStatus, elapsed time.Duration) {
	if mt == nil {
		return
	}

	mt.outcomes.WithLabelValues(string(status)).Inc()
	mt.duration.Observe(elapsed.Seconds())
}

// StageFailed counts a failure in the named pipeline stage.
func (mt *Metrics) StageFailed(stage string) {
	if mt == nil {
		return
	}

	mt.stageFailures.WithLabelValues(stage).Inc()
}

// GenerationAttempt counts one call to the generator backend.
func (mt *Metrics) GenerationAttempt(operation string, err error) {
	if mt == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	mt.attempts.WithLabelValues(operation, result).Inc()
}

// SetBackups records how many backups are retained.
func (mt *Metrics) SetBackups(n int) {
	if mt == nil {
		return
	}

	mt.backups.Set(float64(n))
}

// WriteTextfile dumps the registry in Prometheus text format. An empty path
// disables the export.
func (mt *Metrics) WriteTextfile(path string) error {
	if mt == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, mt.registry); err != nil {
		slog.Error("Failed to write metrics textfile", "path", path, "error", err)
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	return nil
}
