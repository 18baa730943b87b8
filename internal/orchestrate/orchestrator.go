// Package orchestrate runs the asynchronous pipelines behind transcription
// and export jobs. Each started job gets a ledger entry immediately and a
// background goroutine that advances it to a terminal state; callers poll
// the ledger for progress.
package orchestrate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/engine/summarize"
	"meeting-sidekick/internal/engine/transcribe"
	"meeting-sidekick/internal/events"
	"meeting-sidekick/internal/jobs"
	"meeting-sidekick/internal/models"
	"meeting-sidekick/internal/observability/logging"
	"meeting-sidekick/internal/observability/metrics"
	"meeting-sidekick/internal/store"
)

// Export progress weights: transcription dominates the wait, the final
// write is nearly instant.
const (
	weightTranscription = 0.65
	weightSummarization = 0.30
	progressWriting     = 0.95
)

// Config holds the orchestrator's export settings.
type Config struct {
	VaultPath     string
	PreviewLength int
}

// Orchestrator coordinates stores, engines and the job ledger.
type Orchestrator struct {
	store     *store.Store
	finalizer *audio.Finalizer
	ledger    *jobs.Ledger
	engine    transcribe.Engine
	backend   summarize.Backend
	publisher *events.Publisher
	cfg       Config
	metrics   *metrics.Metrics
	log       zerolog.Logger

	// base is the lifetime context for job goroutines; jobs outlive the
	// HTTP requests that start them and stop only on shutdown.
	base context.Context
}

// New creates an orchestrator. base bounds the lifetime of job goroutines.
func New(base context.Context, st *store.Store, fin *audio.Finalizer, ledger *jobs.Ledger,
	engine transcribe.Engine, backend summarize.Backend, pub *events.Publisher,
	cfg Config, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:     st,
		finalizer: fin,
		ledger:    ledger,
		engine:    engine,
		backend:   backend,
		publisher: pub,
		cfg:       cfg,
		metrics:   m,
		log:       logging.WithComponent("orchestrate"),
		base:      base,
	}
}

// Job returns a snapshot of the job, for polling.
func (o *Orchestrator) Job(id string) (jobs.Job, error) {
	return o.ledger.Get(id)
}

// publishStatus emits a job status event; publish failures are logged and
// never fail the job itself.
func (o *Orchestrator) publishStatus(jobID string) {
	job, err := o.ledger.Get(jobID)
	if err != nil {
		return
	}
	ev := models.JobStatusEvent{
		EventType:       "job.status.changed",
		JobID:           job.ID,
		SessionID:       job.SessionID,
		Kind:            string(job.Kind),
		Status:          string(job.Status),
		Stage:           job.Stage,
		OverallProgress: job.OverallProgress,
		Timestamp:       time.Now().UTC(),
	}
	if err := o.publisher.PublishJobStatus(o.base, ev); err != nil {
		o.log.Warn().Err(err).Str("jobId", jobID).Msg("Failed to publish job status")
	}
}

func (o *Orchestrator) publishTranscriptReady(sessionID string, res transcribe.Result) {
	var confidence float64
	for _, seg := range res.Segments {
		confidence += seg.Confidence
	}
	if n := len(res.Segments); n > 0 {
		confidence /= float64(n)
	}

	ev := models.TranscriptReadyEvent{
		EventType:       "transcript.ready",
		SessionID:       sessionID,
		SegmentCount:    len(res.Segments),
		DurationSeconds: res.DurationSeconds,
		Confidence:      confidence,
		Timestamp:       time.Now().UTC(),
	}
	if err := o.publisher.PublishTranscriptReady(o.base, ev); err != nil {
		o.log.Warn().Err(err).Str("sessionId", sessionID).Msg("Failed to publish transcript ready")
	}
}

// fail moves the job to failed and emits the status event.
func (o *Orchestrator) fail(jobID string, err error) {
	if ferr := o.ledger.Fail(jobID, err.Error()); ferr != nil {
		o.log.Error().Err(ferr).Str("jobId", jobID).Msg("Failed to mark job failed")
		return
	}
	o.publishStatus(jobID)
}

func storeSegments(segments []transcribe.Segment) []store.Segment {
	out := make([]store.Segment, len(segments))
	for i, seg := range segments {
		out[i] = store.Segment{
			Seq:        seg.Seq,
			Text:       seg.Text,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
			Confidence: seg.Confidence,
		}
	}
	return out
}
