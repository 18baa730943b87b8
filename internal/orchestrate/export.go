package orchestrate

import (
	"fmt"
	"time"

	"meeting-sidekick/internal/engine/summarize"
	"meeting-sidekick/internal/export"
	"meeting-sidekick/internal/jobs"
	"meeting-sidekick/internal/observability/logging"
)

// ExportRequest describes one export run.
type ExportRequest struct {
	SessionID          string
	Title              string
	Template           string
	CustomInstructions string
}

// StartExport begins an asynchronous export of the session to the vault
// and returns the job id to poll. The session must exist and have
// recoverable audio or an existing transcript.
func (o *Orchestrator) StartExport(req ExportRequest) (string, error) {
	session, err := o.store.GetSession(req.SessionID)
	if err != nil {
		return "", err
	}
	if !session.HasTranscript {
		if _, err := o.finalizer.EnsureSessionAudioPath(req.SessionID); err != nil {
			return "", err
		}
	}

	jobID := o.ledger.Create(jobs.KindExport, req.SessionID)
	o.publishStatus(jobID)

	go o.runExport(jobID, req)
	return jobID, nil
}

func (o *Orchestrator) runExport(jobID string, req ExportRequest) {
	log := logging.WithJob(jobID, string(jobs.KindExport), req.SessionID)

	result, err := o.exportPipeline(jobID, req)
	if err != nil {
		log.Error().Err(err).Msg("Export job failed")
		o.fail(jobID, err)
		return
	}

	if err := o.ledger.Complete(jobID, result); err != nil {
		log.Error().Err(err).Msg("Failed to complete export job")
		return
	}
	o.publishStatus(jobID)
	log.Info().Str("filename", result.Filename).Msg("Export job completed")
}

// exportPipeline is the authoritative export path:
// audio (or stored transcript) -> summary -> markdown note in the vault.
func (o *Orchestrator) exportPipeline(jobID string, req ExportRequest) (*jobs.ExportResult, error) {
	session, err := o.store.GetSession(req.SessionID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" && req.Title != session.Title {
		if err := o.store.SetTitle(req.SessionID, req.Title); err != nil {
			return nil, err
		}
		session.Title = req.Title
	}
	title := session.Title
	if title == "" {
		title = "Untitled Meeting"
	}

	// Transcription stage. A stored transcript is reused; otherwise the
	// recording is transcribed fresh.
	zero := 0.0
	o.updateExport(jobID, "transcribing", "Preparing recording", 0.03, &zero)

	start := time.Now()
	var durationSeconds float64
	if session.HasTranscript {
		o.updateExport(jobID, "transcribing", "Using stored transcript", 1, &zero)
	} else {
		audioPath, err := o.finalizer.EnsureSessionAudioPath(req.SessionID)
		if err != nil {
			return nil, err
		}
		o.updateExport(jobID, "transcribing", "Transcribing audio", 0.08, &zero)

		res, err := o.transcribeToStore(req.SessionID, audioPath, func(progress float64) {
			o.updateExport(jobID, "transcribing", "Transcribing audio", progress, &zero)
		})
		if err != nil {
			return nil, fmt.Errorf("transcribing: %w", err)
		}
		durationSeconds = res.DurationSeconds
		o.publishTranscriptReady(req.SessionID, res)
		o.updateExport(jobID, "transcribing", "Transcript complete", 1, &zero)
	}
	o.metrics.RecordStageDuration(string(jobs.KindExport), "transcribing", time.Since(start).Seconds())

	segments, err := o.store.Transcript(req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("session has no transcript segments")
	}
	if durationSeconds == 0 {
		durationSeconds = segments[len(segments)-1].EndTime
	}
	transcript := export.FormatTranscript(segments)

	// Summarization stage. The backend call is one-shot, so progress here
	// is coarse: started, then done.
	start = time.Now()
	low := 0.08
	o.updateExport(jobID, "summarizing", "Generating summary", 1, &low)

	systemPrompt, userPrompt := summarize.BuildPrompt(req.Template, transcript, req.CustomInstructions)
	summary, err := o.backend.Summarize(o.base, systemPrompt, userPrompt)
	o.metrics.RecordStageDuration(string(jobs.KindExport), "summarizing", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("summarizing: %w", err)
	}

	one := 1.0
	o.updateExport(jobID, "summarizing", "Summary complete", 1, &one)

	// Write stage.
	start = time.Now()
	o.updateExport(jobID, "writing", "Writing note to vault", 1, &one)

	templateLabel := summarize.TemplateLabel(req.Template)
	filename := export.BuildFilename(session.StartedAt, title, templateLabel)
	note := export.RenderNote(templateLabel, session.StartedAt, durationSeconds, summary.Content, transcript)

	notePath, err := export.WriteNote(o.cfg.VaultPath, filename, note)
	if err != nil {
		return nil, fmt.Errorf("writing: %w", err)
	}
	if err := o.store.SetHasSummary(req.SessionID); err != nil {
		return nil, err
	}
	o.metrics.RecordStageDuration(string(jobs.KindExport), "writing", time.Since(start).Seconds())

	return &jobs.ExportResult{
		Filename:       filename,
		SummaryPreview: export.Preview(summary.Content, o.cfg.PreviewLength),
		NotePath:       notePath,
		URI:            export.ObsidianURI(o.cfg.VaultPath, filename),
	}, nil
}

// updateExport maps stage progress onto the export job's overall progress.
// Transcription accounts for 65%, summarization 30%, the final write 5%.
func (o *Orchestrator) updateExport(jobID, stage, message string, transcription float64, summarization *float64) {
	var overall float64
	switch stage {
	case "transcribing":
		overall = weightTranscription * transcription
	case "summarizing":
		overall = weightTranscription
		if summarization != nil {
			overall += weightSummarization * *summarization
		}
	case "writing":
		overall = progressWriting
	}
	if err := o.ledger.Update(jobID, stage, message, transcription, summarization, overall); err != nil {
		o.log.Warn().Err(err).Str("jobId", jobID).Msg("Failed to update job progress")
	}
	o.publishStatus(jobID)
}
