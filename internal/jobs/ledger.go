// Package jobs provides the in-memory registry of asynchronous
// long-running operations (transcription, export) with pollable,
// monotonically advancing progress.
package jobs

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/metrics"
)

// Kind identifies the type of work a job tracks.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindExport        Kind = "export"
)

// Status is the coarse job state.
//
// State transitions:
//
//	queued → running → completed
//	  │        │
//	  └────────┴──→ failed
//
// completed and failed are terminal: any further Update/Complete/Fail on
// the job returns ErrJobTerminal. A terminal-state mutation is a
// programming error in the orchestrator, not a condition to paper over.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status permits no further mutation.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrJobTerminal is returned when mutating a completed or failed job.
var ErrJobTerminal = errors.New("job is in a terminal state")

// ExportResult is the payload handed to the poller when an export job
// completes.
type ExportResult struct {
	Filename       string `json:"filename"`
	SummaryPreview string `json:"summaryPreview"`
	NotePath       string `json:"notePath"`
	URI            string `json:"uri"`
}

// Job is a point-in-time snapshot of one ledger entry.
type Job struct {
	ID                    string        `json:"jobId"`
	SessionID             string        `json:"sessionId"`
	Kind                  Kind          `json:"kind"`
	Status                Status        `json:"status"`
	Stage                 string        `json:"stage"`
	Message               string        `json:"message"`
	TranscriptionProgress float64       `json:"transcriptionProgress"`
	SummarizationProgress *float64      `json:"summarizationProgress,omitempty"`
	OverallProgress       float64       `json:"overallProgress"`
	Result                *ExportResult `json:"result,omitempty"`
	Error                 string        `json:"error,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

const shardCount = 16

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// Ledger owns all job records for their lifetime. It is sharded by job id
// so polling one job never contends with updates to another. Instances are
// injected, never global, so tests can run isolated ledgers.
type Ledger struct {
	shards  [shardCount]*shard
	metrics *metrics.Metrics
}

// NewLedger creates an empty ledger.
func NewLedger(m *metrics.Metrics) *Ledger {
	l := &Ledger{metrics: m}
	for i := range l.shards {
		l.shards[i] = &shard{jobs: make(map[string]*Job)}
	}
	return l
}

func (l *Ledger) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return l.shards[h.Sum32()%shardCount]
}

// Create allocates a new job in queued state with zero progress.
func (l *Ledger) Create(kind Kind, sessionID string) string {
	id := uuid.NewString()
	now := time.Now().UTC()

	job := &Job{
		ID:        id,
		SessionID: sessionID,
		Kind:      kind,
		Status:    StatusQueued,
		Stage:     "queued",
		Message:   "Queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == KindExport {
		zero := 0.0
		job.SummarizationProgress = &zero
	}

	s := l.shardFor(id)
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	l.metrics.RecordJobCreated(string(kind))
	return id
}

// Update records stage, message and progress for a running job. Progress
// fractions are clamped to [0,1]; overall progress never decreases across
// successive updates, the contract the polling client depends on for a
// non-janky progress bar.
func (l *Ledger) Update(id, stage, message string, transcription float64, summarization *float64, overall float64) error {
	s := l.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &faults.NotFoundError{Kind: "job", ID: id}
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("update %s: %w", id, ErrJobTerminal)
	}

	job.Status = StatusRunning
	job.Stage = stage
	job.Message = message
	job.TranscriptionProgress = clamp01(transcription)
	if summarization != nil {
		v := clamp01(*summarization)
		job.SummarizationProgress = &v
	}
	if o := clamp01(overall); o > job.OverallProgress {
		job.OverallProgress = o
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions the job to completed, storing the optional result
// payload and forcing progress to 1.
func (l *Ledger) Complete(id string, result *ExportResult) error {
	s := l.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &faults.NotFoundError{Kind: "job", ID: id}
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("complete %s: %w", id, ErrJobTerminal)
	}

	job.Status = StatusCompleted
	job.Stage = "completed"
	job.Message = "Completed"
	job.TranscriptionProgress = 1
	if job.SummarizationProgress != nil {
		one := 1.0
		job.SummarizationProgress = &one
	}
	job.OverallProgress = 1
	job.Result = result
	job.UpdatedAt = time.Now().UTC()

	l.metrics.RecordJobTerminal(string(job.Kind), string(StatusCompleted))
	return nil
}

// Fail transitions the job to failed, storing the error message verbatim
// for client display.
func (l *Ledger) Fail(id, errorMessage string) error {
	s := l.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return &faults.NotFoundError{Kind: "job", ID: id}
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("fail %s: %w", id, ErrJobTerminal)
	}

	job.Status = StatusFailed
	job.Stage = "failed"
	job.Message = "Failed"
	job.Error = errorMessage
	job.UpdatedAt = time.Now().UTC()

	l.metrics.RecordJobTerminal(string(job.Kind), string(StatusFailed))
	return nil
}

// Get returns a snapshot of the job. Unknown ids fail with NotFoundError,
// never a stale or zero record.
func (l *Ledger) Get(id string) (Job, error) {
	s := l.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, &faults.NotFoundError{Kind: "job", ID: id}
	}

	snapshot := *job
	if job.SummarizationProgress != nil {
		v := *job.SummarizationProgress
		snapshot.SummarizationProgress = &v
	}
	if job.Result != nil {
		r := *job.Result
		snapshot.Result = &r
	}
	return snapshot, nil
}

// Sweep removes terminal jobs whose last update is older than retention.
// Running jobs are never swept; the server lets them run to completion.
// Returns the number of records removed.
func (l *Ledger) Sweep(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, job := range s.jobs {
			if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
