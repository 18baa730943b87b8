// Package api implements the HTTP surface: chunked audio upload,
// finalization, job control and session management.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/engine/summarize"
	"meeting-sidekick/internal/export"
	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/logging"
	"meeting-sidekick/internal/orchestrate"
	"meeting-sidekick/internal/store"
)

// clientIDHeader identifies the uploading recorder instance. Chunks are
// namespaced per (session, client) so a page reload that restarts chunk
// numbering at zero cannot collide with the previous instance's chunks.
const clientIDHeader = "X-Client-ID"

const defaultClientID = "default"

// maxChunkBytes bounds a single chunk upload body.
const maxChunkBytes = 32 << 20

// maxAudioBytes bounds the full-blob fallback upload body.
const maxAudioBytes = 512 << 20

// Handler carries the API's dependencies.
type Handler struct {
	store     *store.Store
	chunks    *audio.ChunkStore
	finalizer *audio.Finalizer
	orch      *orchestrate.Orchestrator
	log       zerolog.Logger

	// mu guards current, the session the active recorder writes to.
	mu      sync.Mutex
	current string
}

// NewHandler creates the API handler.
func NewHandler(st *store.Store, chunks *audio.ChunkStore, fin *audio.Finalizer, orch *orchestrate.Orchestrator) *Handler {
	return &Handler{
		store:     st,
		chunks:    chunks,
		finalizer: fin,
		orch:      orch,
		log:       logging.WithComponent("api"),
	}
}

func clientID(r *http.Request) string {
	if id := r.Header.Get(clientIDHeader); id != "" {
		return id
	}
	return defaultClientID
}

// --- Sessions ---

type createSessionRequest struct {
	Title    string `json:"title"`
	ClientID string `json:"clientId"`
}

// CreateSession starts a new recording session and marks it current.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors for an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.ClientID == "" {
		req.ClientID = clientID(r)
	}

	id := uuid.NewString()
	session, err := h.store.CreateSession(id, req.Title, req.ClientID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	h.current = id
	h.mu.Unlock()

	logger := logging.WithSession(id, req.ClientID)
	logger.Info().Msg("Session started")
	writeJSON(w, http.StatusCreated, session)
}

// EndCurrentSession stamps the end time on the current session.
func (h *Handler) EndCurrentSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	id := h.current
	h.current = ""
	h.mu.Unlock()

	if id == "" {
		writeError(w, &faults.NotFoundError{Kind: "session", ID: "current"})
		return
	}
	if err := h.store.EndSession(id, time.Now()); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.store.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ListRecordings returns sessions newest first.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	sessions, err := h.store.ListSessions(limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": sessions})
}

type recordingDetail struct {
	store.Session
	Transcript []store.Segment `json:"transcript"`
}

// GetRecording returns one session with its transcript.
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	session, err := h.store.GetSession(id)
	if err != nil {
		writeError(w, err)
		return
	}
	segments, err := h.store.Transcript(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if segments == nil {
		segments = []store.Segment{}
	}
	writeJSON(w, http.StatusOK, recordingDetail{Session: *session, Transcript: segments})
}

// DeleteRecording removes the session row, its artifact and any chunk
// state.
func (h *Handler) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := h.store.DeleteSession(id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.finalizer.RemoveArtifact(id); err != nil {
		h.log.Warn().Err(err).Str("sessionId", id).Msg("Failed to remove artifact")
	}
	if err := h.chunks.ClearSession(id); err != nil {
		h.log.Warn().Err(err).Str("sessionId", id).Msg("Failed to clear chunks")
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAudio streams the session's finalized artifact.
func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if _, err := h.store.GetSession(id); err != nil {
		writeError(w, err)
		return
	}
	path, ok := h.finalizer.Artifact(id)
	if !ok {
		writeError(w, &faults.NotFoundError{Kind: "artifact", ID: id})
		return
	}

	w.Header().Set("Content-Type", audio.MIMEForExtension(filepath.Ext(path)))
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", export.SanitizeTitle(filepath.Base(path))))
	}
	http.ServeFile(w, r, path)
}

// --- Chunked upload ---

// PutChunk stores one audio chunk at (session, client, index). Chunks may
// arrive in any order; identical retries are no-ops; a size mismatch at a
// stored index is a 409 carrying the next expected index.
func (h *Handler) PutChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		badRequest(w, "chunk index must be a non-negative integer")
		return
	}

	if _, err := h.store.GetSession(sessionID); err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBytes+1))
	if err != nil {
		badRequest(w, "failed to read chunk body")
		return
	}
	if len(data) == 0 {
		badRequest(w, "chunk payload is empty")
		return
	}
	if len(data) > maxChunkBytes {
		badRequest(w, "chunk payload too large")
		return
	}

	client := clientID(r)
	if err := h.chunks.Put(sessionID, client, index, data); err != nil {
		if faults.IsConflict(err) {
			writeError(w, err)
			return
		}
		badRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"chunkIndex":    index,
		"receivedBytes": len(data),
	})
}

type finalizeRequest struct {
	MIMEType           string `json:"mimeType"`
	UploadedChunkCount int    `json:"uploadedChunkCount"`
}

// Finalize merges this client's chunk set into the session artifact.
// Finalizing an already-finalized session with no pending chunks is an
// idempotent success so retries after a lost response are safe.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid finalize body")
		return
	}
	if req.UploadedChunkCount < 1 {
		badRequest(w, "uploadedChunkCount must be positive")
		return
	}

	if _, err := h.store.GetSession(sessionID); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.finalizer.Finalize(sessionID, clientID(r), req.MIMEType, req.UploadedChunkCount)
	if err != nil {
		writeError(w, err)
		return
	}

	status := "finalized"
	if res.AlreadyFinalized {
		status = "already_finalized"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"bytes":    res.Bytes,
		"chunks":   res.Chunks,
		"mimeType": res.MIMEType,
	})
}

// PutAudio stores a complete recording in one request, the fallback for
// clients that buffered the whole blob.
func (h *Handler) PutAudio(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if r.ContentLength > maxAudioBytes {
		badRequest(w, "audio payload too large")
		return
	}
	if _, err := h.store.GetSession(sessionID); err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
	if err != nil {
		badRequest(w, "failed to read audio body")
		return
	}
	if len(data) == 0 {
		badRequest(w, "audio payload is empty")
		return
	}
	if len(data) > maxAudioBytes {
		badRequest(w, "audio payload too large")
		return
	}

	res, err := h.finalizer.UploadFullBlob(sessionID, data, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "finalized",
		"bytes":    res.Bytes,
		"mimeType": res.MIMEType,
	})
}

// --- Jobs ---

// StartTranscription kicks off an asynchronous transcription job.
func (h *Handler) StartTranscription(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	jobID, err := h.orch.StartTranscription(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":   jobID,
		"status":  "queued",
		"pollUrl": "/api/jobs/" + jobID,
	})
}

type exportRequest struct {
	Title        string `json:"title"`
	Template     string `json:"template"`
	CustomPrompt string `json:"customPrompt"`
}

// StartExport kicks off an asynchronous export job.
func (h *Handler) StartExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid export body")
		return
	}
	if req.Title == "" {
		badRequest(w, "title is required")
		return
	}

	jobID, err := h.orch.StartExport(orchestrate.ExportRequest{
		SessionID:          sessionID,
		Title:              req.Title,
		Template:           req.Template,
		CustomInstructions: req.CustomPrompt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":   jobID,
		"status":  "queued",
		"pollUrl": "/api/jobs/" + jobID,
	})
}

// GetJob returns a point-in-time snapshot of a job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.Job(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- Templates ---

// ListTemplates returns the summary template catalog.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": summarize.Templates()})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
