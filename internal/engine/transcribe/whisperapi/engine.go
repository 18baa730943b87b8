// Package whisperapi provides a transcription engine backed by the OpenAI
// Whisper API. The API is one-shot; segment events are replayed from its
// verbose response so consumers still observe per-segment progress.
package whisperapi

import (
	"context"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"meeting-sidekick/internal/engine/transcribe"
	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/metrics"
)

// Engine implements transcribe.Engine via the Whisper API.
type Engine struct {
	client   *openai.Client
	language string
	metrics  *metrics.Metrics
}

// New creates a Whisper API engine. language is a BCP-47 tag; only the
// primary subtag is sent to the API.
func New(apiKey, language string, m *metrics.Metrics) *Engine {
	return &Engine{
		client:   openai.NewClient(apiKey),
		language: primarySubtag(language),
		metrics:  m,
	}
}

func (e *Engine) Name() string { return "whisper-api" }

// Transcribe uploads the artifact and replays the returned segments as
// ordered progress events.
func (e *Engine) Transcribe(ctx context.Context, audioPath, mimeType string) (*transcribe.Stream, error) {
	stream := transcribe.NewStream(16)
	go func() {
		start := time.Now()
		resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    openai.Whisper1,
			FilePath: audioPath,
			Format:   openai.AudioResponseFormatVerboseJSON,
			Language: e.language,
		})
		e.metrics.RecordEngineCall(e.Name(), "transcribe", err, time.Since(start).Seconds())
		if err != nil {
			stream.Finish(transcribe.Result{}, &faults.EngineFailure{
				Stage:  "transcribing",
				Engine: e.Name(),
				Err:    err,
			})
			return
		}

		total := resp.Duration
		segments := make([]transcribe.Segment, 0, len(resp.Segments))
		for i, s := range resp.Segments {
			seg := transcribe.Segment{
				Seq:        i,
				Text:       strings.TrimSpace(s.Text),
				StartTime:  s.Start,
				EndTime:    s.End,
				Confidence: confidenceFromLogprob(s.AvgLogprob),
			}
			segments = append(segments, seg)

			progress := float64(i+1) / float64(len(resp.Segments))
			if total > 0 {
				progress = seg.EndTime / total
			}
			stream.Emit(transcribe.Event{Segment: seg, Progress: progress})
		}

		// Whisper occasionally returns plain text with no segment list.
		if len(segments) == 0 && strings.TrimSpace(resp.Text) != "" {
			seg := transcribe.Segment{
				Seq:        0,
				Text:       strings.TrimSpace(resp.Text),
				StartTime:  0,
				EndTime:    total,
				Confidence: 0.5,
			}
			segments = append(segments, seg)
			stream.Emit(transcribe.Event{Segment: seg, Progress: 1})
		}

		stream.Finish(transcribe.Result{
			Segments:        segments,
			DurationSeconds: total,
			Language:        resp.Language,
		}, nil)
	}()
	return stream, nil
}

// confidenceFromLogprob maps Whisper's average log-probability to (0,1].
func confidenceFromLogprob(avgLogprob float64) float64 {
	c := math.Exp(avgLogprob)
	if c > 1 {
		c = 1
	}
	if c <= 0 {
		c = 0.01
	}
	return c
}

func primarySubtag(language string) string {
	if i := strings.IndexByte(language, '-'); i > 0 {
		return language[:i]
	}
	return language
}
