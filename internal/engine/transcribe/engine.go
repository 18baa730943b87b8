// Package transcribe defines the transcription engine abstraction: given a
// finalized audio artifact, an engine produces a lazy, finite sequence of
// segment events followed by a terminal result. The orchestrator consumes
// the sequence with a blocking read loop rather than nested callbacks.
package transcribe

import "context"

// Segment is one ordered, timestamped slice of transcribed speech.
type Segment struct {
	Seq        int
	Text       string
	StartTime  float64 // seconds from recording start
	EndTime    float64
	Confidence float64
}

// Event is emitted once per produced segment. Progress is the fraction of
// audio transcribed so far in [0,1]; engines that cannot know the total
// duration up front report a conservative estimate and never go backwards.
type Event struct {
	Segment  Segment
	Progress float64
}

// Result is the terminal outcome of one transcription run.
type Result struct {
	Segments        []Segment
	DurationSeconds float64
	Language        string
}

// Engine is a pluggable transcription backend.
type Engine interface {
	Name() string
	// Transcribe starts transcribing the artifact at audioPath and returns
	// a stream of segment events. The returned stream always finishes:
	// either with a Result or with an error via Wait.
	Transcribe(ctx context.Context, audioPath, mimeType string) (*Stream, error)
}

// Stream carries the ordered event sequence from an engine goroutine to
// its single consumer.
type Stream struct {
	events chan Event
	done   chan struct{}
	result Result
	err    error
}

// NewStream creates a stream with the given event buffer.
func NewStream(buffer int) *Stream {
	return &Stream{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Events returns the channel of segment events. It is closed when the
// engine finishes, successfully or not.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Emit publishes one event. Called only by the producing engine.
func (s *Stream) Emit(ev Event) {
	s.events <- ev
}

// Finish records the terminal result (or error), closes the event channel
// and unblocks Wait. Called exactly once by the producing engine.
func (s *Stream) Finish(res Result, err error) {
	s.result = res
	s.err = err
	close(s.events)
	close(s.done)
}

// Wait blocks until the engine finishes and returns the terminal result.
// Callers must drain Events before or while waiting.
func (s *Stream) Wait() (Result, error) {
	<-s.done
	return s.result, s.err
}
