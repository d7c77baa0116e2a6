// Package metrics records per-run pipeline counters and histograms.
//
// Each run owns a registry so concurrent pipelines never share series. When
// metrics.textfile is configured the registry is flushed in the node_exporter
// textfile format at the end of the run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kotoba/internal/services"
)

// Metrics holds the collectors for one pipeline run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// RemoteCalls counts remote service calls.
	// Labels: operation (transcribe/translate/synthesize), status (ok or services.Classify label)
	RemoteCalls *prometheus.CounterVec
	// RemoteDuration observes remote call latency in seconds.
	RemoteDuration *prometheus.HistogramVec
	// DegradedItems counts sentences whose translation or synthesis fell back.
	DegradedItems *prometheus.CounterVec
	// CacheHits counts translations served from the local cache.
	CacheHits prometheus.Counter
	// PhaseDuration observes wall time per pipeline stage in seconds.
	PhaseDuration *prometheus.HistogramVec
	// Sentences is the sentence count of the current run.
	Sentences prometheus.Gauge
	// Runs counts finished runs by outcome.
	Runs *prometheus.CounterVec
}

// New creates a Metrics backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RemoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_remote_calls_total",
				Help: "Total number of remote service calls by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		RemoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kotoba_remote_call_duration_seconds",
				Help:    "Remote service call duration in seconds by operation",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
		DegradedItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_degraded_items_total",
				Help: "Total number of sentences degraded in place by phase",
			},
			[]string{"phase"},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kotoba_translation_cache_hits_total",
				Help: "Total number of translations served from the local cache",
			},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kotoba_phase_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"phase"},
		),
		Sentences: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kotoba_sentences",
				Help: "Number of sentences in the current run",
			},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kotoba_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"status"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCall records one remote call that started at start.
func (m *Metrics) ObserveCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(operation, services.Classify(err)).Inc()
	m.RemoteDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordDegraded counts one degraded sentence in phase.
func (m *Metrics) RecordDegraded(phase string) {
	if m == nil {
		return
	}
	m.DegradedItems.WithLabelValues(phase).Inc()
}

// RecordCacheHit counts one cached translation.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObservePhase records how long a stage took.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetSentences records the sentence count.
func (m *Metrics) SetSentences(n int) {
	if m == nil {
		return
	}
	m.Sentences.Set(float64(n))
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(err error) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(services.Classify(err)).Inc()
}

// WriteTextfile writes the registry to path in the Prometheus text format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
