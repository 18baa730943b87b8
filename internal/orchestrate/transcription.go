package orchestrate

import (
	"fmt"
	"path/filepath"
	"time"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/engine/transcribe"
	"meeting-sidekick/internal/jobs"
	"meeting-sidekick/internal/observability/logging"
)

// StartTranscription begins an asynchronous transcription of the session's
// audio artifact and returns the job id to poll. The session must exist and
// have recoverable audio.
func (o *Orchestrator) StartTranscription(sessionID string) (string, error) {
	if _, err := o.store.GetSession(sessionID); err != nil {
		return "", err
	}
	audioPath, err := o.finalizer.EnsureSessionAudioPath(sessionID)
	if err != nil {
		return "", err
	}

	jobID := o.ledger.Create(jobs.KindTranscription, sessionID)
	o.publishStatus(jobID)

	go o.runTranscription(jobID, sessionID, audioPath)
	return jobID, nil
}

func (o *Orchestrator) runTranscription(jobID, sessionID, audioPath string) {
	log := logging.WithJob(jobID, string(jobs.KindTranscription), sessionID)
	start := time.Now()

	res, err := o.transcribeToStore(sessionID, audioPath, func(progress float64) {
		if uerr := o.ledger.Update(jobID, "transcribing", "Transcribing audio", progress, nil, progress); uerr != nil {
			log.Warn().Err(uerr).Msg("Failed to update job progress")
		}
	})
	o.metrics.RecordStageDuration(string(jobs.KindTranscription), "transcribing", time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Msg("Transcription job failed")
		o.fail(jobID, err)
		return
	}

	if err := o.ledger.Complete(jobID, nil); err != nil {
		log.Error().Err(err).Msg("Failed to complete transcription job")
		return
	}
	o.publishStatus(jobID)
	o.publishTranscriptReady(sessionID, res)
	log.Info().Int("segments", len(res.Segments)).
		Float64("durationSeconds", res.DurationSeconds).
		Msg("Transcription job completed")
}

// transcribeToStore runs the engine over the artifact, reports per-segment
// progress through onProgress, and atomically replaces the session's
// transcript. On engine failure nothing is written, so has_transcript keeps
// reflecting a complete transcript or none at all.
func (o *Orchestrator) transcribeToStore(sessionID, audioPath string, onProgress func(float64)) (transcribe.Result, error) {
	mimeType := audio.MIMEForExtension(filepath.Ext(audioPath))

	stream, err := o.engine.Transcribe(o.base, audioPath, mimeType)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("start transcription: %w", err)
	}

	for ev := range stream.Events() {
		onProgress(ev.Progress)
	}
	res, err := stream.Wait()
	if err != nil {
		return transcribe.Result{}, err
	}
	if len(res.Segments) == 0 {
		return transcribe.Result{}, fmt.Errorf("no speech detected in recording audio")
	}

	if err := o.store.ReplaceTranscript(sessionID, storeSegments(res.Segments)); err != nil {
		return transcribe.Result{}, fmt.Errorf("store transcript: %w", err)
	}
	return res, nil
}
