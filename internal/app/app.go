// Package app wires the service's components together: storage, engines,
// the job ledger and the event publisher.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/config"
	"meeting-sidekick/internal/engine/summarize"
	"meeting-sidekick/internal/engine/transcribe"
	"meeting-sidekick/internal/engine/transcribe/google"
	"meeting-sidekick/internal/engine/transcribe/mock"
	"meeting-sidekick/internal/engine/transcribe/whisperapi"
	"meeting-sidekick/internal/events"
	"meeting-sidekick/internal/jobs"
	"meeting-sidekick/internal/observability/logging"
	"meeting-sidekick/internal/observability/metrics"
	"meeting-sidekick/internal/orchestrate"
	"meeting-sidekick/internal/store"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Cfg         *config.Configuration

	Store        *store.Store
	Chunks       *audio.ChunkStore
	Finalizer    *audio.Finalizer
	Ledger       *jobs.Ledger
	Publisher    *events.Publisher
	Orchestrator *orchestrate.Orchestrator

	log       zerolog.Logger
	sweepStop chan struct{}
	sweepDone chan struct{}
	closers   []func() error
}

// New constructs the application from configuration, opening storage and
// selecting engines. ctx bounds background job goroutines.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg:       cfg,
		log:       logging.WithComponent("application"),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	m := metrics.DefaultMetrics

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	chunks, err := audio.NewChunkStore(filepath.Join(cfg.Storage.DataDir, "chunks"), m)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("chunk store: %w", err)
	}
	a.Chunks = chunks

	fin, err := audio.NewFinalizer(chunks, filepath.Join(cfg.Storage.DataDir, "recordings"), st, m)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("finalizer: %w", err)
	}
	a.Finalizer = fin

	engine, err := a.buildTranscriptionEngine(ctx, m)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	backend := a.buildSummarizationBackend(m)

	a.Ledger = jobs.NewLedger(m)
	a.Publisher = events.New(&events.Config{
		Enabled:          cfg.Kafka.Enabled,
		Brokers:          cfg.Kafka.Brokers,
		TopicStatus:      cfg.Kafka.TopicJobStatus,
		TopicTranscripts: cfg.Kafka.TopicTranscripts,
		Principal:        cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher.Close)

	a.Orchestrator = orchestrate.New(ctx, st, fin, a.Ledger, engine, backend, a.Publisher,
		orchestrate.Config{
			VaultPath:     cfg.Export.VaultPath,
			PreviewLength: cfg.Export.PreviewLength,
		}, m)

	a.log.Info().
		Str("transcriptionEngine", engine.Name()).
		Str("summarizationBackend", backend.Name()).
		Msg("Application created")
	return a, nil
}

func (a *Application) buildTranscriptionEngine(ctx context.Context, m *metrics.Metrics) (transcribe.Engine, error) {
	cfg := a.Cfg.Transcription
	switch cfg.Engine {
	case "whisper-api":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("whisper-api engine requires an OpenAI API key")
		}
		return whisperapi.New(cfg.OpenAIAPIKey, cfg.LanguageCode, m), nil
	case "google":
		engine, err := google.New(ctx, cfg.LanguageCode, cfg.SampleRateHz, m)
		if err != nil {
			return nil, fmt.Errorf("google engine: %w", err)
		}
		a.closers = append(a.closers, engine.Close)
		return engine, nil
	default:
		return mock.New(), nil
	}
}

func (a *Application) buildSummarizationBackend(m *metrics.Metrics) summarize.Backend {
	cfg := a.Cfg.Summarization
	switch cfg.Backend {
	case "openai":
		return summarize.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIModel, m)
	case "ollama":
		return summarize.NewOllamaBackend(cfg.OllamaHost, cfg.OllamaModel, m)
	case "anthropic":
		return summarize.NewAnthropicBackend(cfg.AnthropicAPIKey, cfg.AnthropicModel, m)
	default:
		return summarize.NewMockBackend()
	}
}

// Start performs startup work and launches the job sweeper.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.log.Info().Time("startupTime", a.StartupTime).Msg("Service starting")

	go a.runSweeper()
	return nil
}

// runSweeper periodically evicts terminal jobs older than the retention
// window so the ledger does not grow without bound.
func (a *Application) runSweeper() {
	defer close(a.sweepDone)

	ticker := time.NewTicker(a.Cfg.Jobs.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := a.Ledger.Sweep(a.Cfg.Jobs.Retention); removed > 0 {
				a.log.Debug().Int("removed", removed).Msg("Swept terminal jobs")
			}
		case <-a.sweepStop:
			return
		}
	}
}

// Shutdown stops the sweeper and closes storage and the publisher.
func (a *Application) Shutdown() {
	a.log.Info().Msg("Service shutting down")

	close(a.sweepStop)
	<-a.sweepDone
	a.closeAll()
}

func (a *Application) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
