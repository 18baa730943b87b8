// Package mock provides a transcription engine for testing and local
// development without engine credentials. It emits canned segments with
// realistic pacing and supports failure injection mid-stream.
package mock

import (
	"context"
	"errors"
	"time"

	"meeting-sidekick/internal/engine/transcribe"
)

// DefaultSegments are the canned segments emitted when none are supplied.
var DefaultSegments = []transcribe.Segment{
	{Seq: 0, Text: "Alright, let's get started with the weekly sync.", StartTime: 0, EndTime: 3.2, Confidence: 0.95},
	{Seq: 1, Text: "First item is the rollout plan for the new ingestion pipeline.", StartTime: 3.2, EndTime: 7.8, Confidence: 0.93},
	{Seq: 2, Text: "We agreed to ship behind a feature flag by Friday.", StartTime: 7.8, EndTime: 11.5, Confidence: 0.96},
	{Seq: 3, Text: "Dana will own the migration script and post an update tomorrow.", StartTime: 11.5, EndTime: 16.0, Confidence: 0.91},
	{Seq: 4, Text: "Anything else? Okay, thanks everyone.", StartTime: 16.0, EndTime: 18.4, Confidence: 0.97},
}

// ErrInjected is the error produced when failure injection triggers.
var ErrInjected = errors.New("mock engine failure injected")

// Engine implements transcribe.Engine with canned output.
type Engine struct {
	Segments []transcribe.Segment
	Language string
	Delay    time.Duration // pause between segments
	// FailAfter injects an engine error after emitting that many
	// segments. Zero means never fail.
	FailAfter int
}

// New creates a mock engine emitting DefaultSegments.
func New() *Engine {
	return &Engine{Segments: DefaultSegments, Language: "en"}
}

func (e *Engine) Name() string { return "mock" }

// Transcribe emits the canned segments one by one.
func (e *Engine) Transcribe(ctx context.Context, audioPath, mimeType string) (*transcribe.Stream, error) {
	segments := e.Segments
	if len(segments) == 0 {
		segments = DefaultSegments
	}
	total := segments[len(segments)-1].EndTime

	stream := transcribe.NewStream(len(segments))
	go func() {
		for i, seg := range segments {
			if e.FailAfter > 0 && i == e.FailAfter {
				stream.Finish(transcribe.Result{}, ErrInjected)
				return
			}
			if e.Delay > 0 {
				select {
				case <-time.After(e.Delay):
				case <-ctx.Done():
					stream.Finish(transcribe.Result{}, ctx.Err())
					return
				}
			}
			stream.Emit(transcribe.Event{
				Segment:  seg,
				Progress: seg.EndTime / total,
			})
		}
		stream.Finish(transcribe.Result{
			Segments:        segments,
			DurationSeconds: total,
			Language:        e.Language,
		}, nil)
	}()
	return stream, nil
}
