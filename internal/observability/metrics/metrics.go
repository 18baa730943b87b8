// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meeting_sidekick"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Chunk upload metrics
	ChunksStored    prometheus.Counter
	ChunkBytes      prometheus.Counter
	ChunkDuplicates prometheus.Counter
	ChunkConflicts  prometheus.Counter

	// Finalize metrics
	FinalizeTotal *prometheus.CounterVec
	ArtifactBytes prometheus.Histogram

	// Job metrics
	JobsCreated      *prometheus.CounterVec
	JobsTerminal     *prometheus.CounterVec
	JobsActive       prometheus.Gauge
	JobStageDuration *prometheus.HistogramVec

	// Engine metrics
	EngineLatency *prometheus.HistogramVec
	EngineErrors  *prometheus.CounterVec

	// Event publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Total number of audio chunks stored",
		}),
		ChunkBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_bytes_total",
			Help:      "Total audio chunk bytes received",
		}),
		ChunkDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_duplicates_total",
			Help:      "Total number of idempotent duplicate chunk uploads",
		}),
		ChunkConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_conflicts_total",
			Help:      "Total number of chunk uploads rejected for size mismatch",
		}),

		FinalizeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalize_total",
			Help:      "Total number of finalize attempts",
		}, []string{"result"}),
		ArtifactBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of finalized audio artifacts in bytes",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),

		JobsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Total number of jobs created",
		}, []string{"kind"}),
		JobsTerminal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_terminal_total",
			Help:      "Total number of jobs reaching a terminal state",
		}, []string{"kind", "status"}),
		JobsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of jobs currently in a non-terminal state",
		}),
		JobStageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_stage_duration_seconds",
			Help:      "Duration of job stages in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind", "stage"}),

		EngineLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_latency_seconds",
			Help:      "External engine call latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"engine", "op"}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of external engine errors",
		}, []string{"engine", "op"}),

		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Total number of events published",
		}, []string{"topic"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Total number of event publish errors",
		}, []string{"topic"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_latency_seconds",
			Help:      "Event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordChunkStored records a successfully stored chunk.
func (m *Metrics) RecordChunkStored(bytes int) {
	m.ChunksStored.Inc()
	m.ChunkBytes.Add(float64(bytes))
}

// RecordChunkDuplicate records an idempotent duplicate upload.
func (m *Metrics) RecordChunkDuplicate() {
	m.ChunkDuplicates.Inc()
}

// RecordChunkConflict records a size-mismatch rejection.
func (m *Metrics) RecordChunkConflict() {
	m.ChunkConflicts.Inc()
}

// RecordFinalize records a finalize attempt outcome.
func (m *Metrics) RecordFinalize(result string, artifactBytes int64) {
	m.FinalizeTotal.WithLabelValues(result).Inc()
	if artifactBytes > 0 {
		m.ArtifactBytes.Observe(float64(artifactBytes))
	}
}

// RecordJobCreated records a new job entering the ledger.
func (m *Metrics) RecordJobCreated(kind string) {
	m.JobsCreated.WithLabelValues(kind).Inc()
	m.JobsActive.Inc()
}

// RecordJobTerminal records a job reaching completed or failed.
func (m *Metrics) RecordJobTerminal(kind, status string) {
	m.JobsTerminal.WithLabelValues(kind, status).Inc()
	m.JobsActive.Dec()
}

// RecordStageDuration records how long a job stage took.
func (m *Metrics) RecordStageDuration(kind, stage string, seconds float64) {
	m.JobStageDuration.WithLabelValues(kind, stage).Observe(seconds)
}

// RecordEngineCall records an engine call outcome.
func (m *Metrics) RecordEngineCall(engine, op string, err error, seconds float64) {
	m.EngineLatency.WithLabelValues(engine, op).Observe(seconds)
	if err != nil {
		m.EngineErrors.WithLabelValues(engine, op).Inc()
	}
}

// RecordPublish records an event publish attempt.
func (m *Metrics) RecordPublish(topic string, err error, seconds float64) {
	m.PublishTotal.WithLabelValues(topic).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(seconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(topic).Inc()
	}
}
