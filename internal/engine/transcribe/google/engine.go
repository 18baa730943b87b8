// Package google provides a transcription engine backed by Google Cloud
// Speech-to-Text. Recognition is batch over the finalized artifact; segment
// events are replayed from the result list so consumers observe per-segment
// progress. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/engine/transcribe"
	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/metrics"
)

// Engine implements transcribe.Engine using Google Cloud Speech-to-Text.
type Engine struct {
	client       *speech.Client
	languageCode string
	sampleRateHz int
	metrics      *metrics.Metrics
}

// New creates a Google STT engine.
func New(ctx context.Context, languageCode string, sampleRateHz int, m *metrics.Metrics) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Engine{
		client:       c,
		languageCode: languageCode,
		sampleRateHz: sampleRateHz,
		metrics:      m,
	}, nil
}

func (e *Engine) Name() string { return "google" }

// Close releases the underlying gRPC connection.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Transcribe runs batch recognition over the artifact and replays the
// returned results as ordered segment events.
func (e *Engine) Transcribe(ctx context.Context, audioPath, mimeType string) (*transcribe.Stream, error) {
	content, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	stream := transcribe.NewStream(16)
	go func() {
		start := time.Now()
		resp, err := e.client.Recognize(ctx, &speechpb.RecognizeRequest{
			Config: &speechpb.RecognitionConfig{
				Encoding:                   encodingFor(mimeType),
				SampleRateHertz:            int32(e.sampleRateHz),
				LanguageCode:               e.languageCode,
				EnableWordTimeOffsets:      true,
				EnableAutomaticPunctuation: true,
			},
			Audio: &speechpb.RecognitionAudio{
				AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
			},
		})
		e.metrics.RecordEngineCall(e.Name(), "transcribe", err, time.Since(start).Seconds())
		if err != nil {
			stream.Finish(transcribe.Result{}, classify(err))
			return
		}

		var (
			segments []transcribe.Segment
			cursor   float64
		)
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			text := strings.TrimSpace(alt.Transcript)
			if text == "" {
				continue
			}

			segStart, segEnd := wordSpan(alt, cursor)
			seg := transcribe.Segment{
				Seq:        len(segments),
				Text:       text,
				StartTime:  segStart,
				EndTime:    segEnd,
				Confidence: float64(alt.Confidence),
			}
			segments = append(segments, seg)
			cursor = segEnd
			stream.Emit(transcribe.Event{
				Segment:  seg,
				Progress: float64(len(segments)) / float64(len(resp.Results)),
			})
		}

		stream.Finish(transcribe.Result{
			Segments:        segments,
			DurationSeconds: cursor,
			Language:        e.languageCode,
		}, nil)
	}()
	return stream, nil
}

// wordSpan derives a result's time span from its word offsets, falling back
// to the running cursor when offsets are absent.
func wordSpan(alt *speechpb.SpeechRecognitionAlternative, cursor float64) (float64, float64) {
	if len(alt.Words) == 0 {
		return cursor, cursor
	}
	first := alt.Words[0].StartTime
	last := alt.Words[len(alt.Words)-1].EndTime
	segStart := cursor
	if first != nil {
		segStart = first.AsDuration().Seconds()
	}
	segEnd := segStart
	if last != nil {
		segEnd = last.AsDuration().Seconds()
	}
	return segStart, segEnd
}

func encodingFor(mimeType string) speechpb.RecognitionConfig_AudioEncoding {
	switch audio.ExtensionForMIME(mimeType) {
	case "webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "wav":
		return speechpb.RecognitionConfig_LINEAR16
	case "mp3":
		return speechpb.RecognitionConfig_MP3
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// classify wraps a Recognize error, separating caller mistakes (bad audio,
// bad arguments) from engine availability problems via the gRPC status code.
func classify(err error) error {
	stage := "transcribing"
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.InvalidArgument, codes.OutOfRange:
			return &faults.EngineFailure{Stage: stage, Engine: "google", Err: fmt.Errorf("rejected audio: %w", err)}
		case codes.Unauthenticated, codes.PermissionDenied:
			return &faults.EngineFailure{Stage: stage, Engine: "google", Err: fmt.Errorf("credentials: %w", err)}
		}
	}
	return &faults.EngineFailure{Stage: stage, Engine: "google", Err: err}
}
