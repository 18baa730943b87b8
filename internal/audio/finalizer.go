package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/logging"
	"meeting-sidekick/internal/observability/metrics"
)

// partialSuffix marks merge output that has not been promoted to an
// artifact yet.
const partialSuffix = ".partial"

// ErrAlreadyFinalized is returned when a full-blob upload targets a session
// whose artifact was already produced by a completed recording pass.
// Finalization is a one-way transition per recording attempt.
var ErrAlreadyFinalized = errors.New("session audio already finalized")

// SessionFlags is the slice of the session store the finalizer needs.
type SessionFlags interface {
	SetHasAudio(sessionID string) error
}

// FinalizeResult reports the artifact produced by a finalize call.
type FinalizeResult struct {
	Path             string
	Bytes            int64
	Chunks           int
	MIMEType         string
	AlreadyFinalized bool
}

// Finalizer owns the promotion of chunk sets (or full-blob fallbacks) into
// the single authoritative audio artifact per session. All write paths go
// through write-then-rename so a failed attempt never leaves a partially
// overwritten artifact.
type Finalizer struct {
	chunks   *ChunkStore
	dir      string
	sessions SessionFlags
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewFinalizer creates a finalizer writing artifacts into dir.
func NewFinalizer(chunks *ChunkStore, dir string, sessions SessionFlags, m *metrics.Metrics) (*Finalizer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Finalizer{
		chunks:   chunks,
		dir:      dir,
		sessions: sessions,
		metrics:  m,
		log:      logging.WithComponent("finalizer"),
	}, nil
}

// Artifact returns the finalized audio path for a session, if present.
func (f *Finalizer) Artifact(sessionID string) (string, bool) {
	for _, ext := range knownExtensions {
		p := filepath.Join(f.dir, sessionID+"."+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	matches, _ := filepath.Glob(filepath.Join(f.dir, sessionID+".*"))
	for _, p := range matches {
		if !strings.HasSuffix(p, partialSuffix) && !strings.HasSuffix(p, ".tmp") {
			return p, true
		}
	}
	return "", false
}

// Finalize merges the client's chunk set into the session artifact.
// It fails with IncompleteUploadError unless exactly chunks 0..expected-1
// are stored, and is idempotent once the artifact exists and the chunk set
// has been cleared.
func (f *Finalizer) Finalize(sessionID, clientID, mimeType string, expected int) (FinalizeResult, error) {
	indices, err := f.chunks.List(sessionID, clientID)
	if err != nil {
		return FinalizeResult{}, err
	}

	if len(indices) == 0 {
		if path, ok := f.Artifact(sessionID); ok {
			info, err := os.Stat(path)
			if err != nil {
				return FinalizeResult{}, err
			}
			f.metrics.RecordFinalize("already_finalized", 0)
			return FinalizeResult{
				Path:             path,
				Bytes:            info.Size(),
				MIMEType:         MIMEForExtension(filepath.Ext(path)),
				AlreadyFinalized: true,
			}, nil
		}
	}

	// Zero chunks with no prior artifact means nothing was ever uploaded;
	// merging would produce an empty artifact and mark the session audible.
	if missing := missingIndices(indices, expected); expected == 0 || len(missing) > 0 || len(indices) != expected {
		f.metrics.RecordFinalize("incomplete", 0)
		return FinalizeResult{}, &faults.IncompleteUploadError{
			SessionID: sessionID,
			ClientID:  clientID,
			Have:      len(indices),
			Want:      expected,
			Missing:   missing,
		}
	}

	ext := ExtensionForMIME(mimeType)
	final := filepath.Join(f.dir, sessionID+"."+ext)
	size, err := f.mergeChunks(sessionID, clientID, indices, final)
	if err != nil {
		f.metrics.RecordFinalize("error", 0)
		return FinalizeResult{}, err
	}

	if err := f.chunks.Clear(sessionID, clientID); err != nil {
		return FinalizeResult{}, err
	}
	if err := f.sessions.SetHasAudio(sessionID); err != nil {
		return FinalizeResult{}, err
	}

	f.metrics.RecordFinalize("finalized", size)
	f.log.Info().
		Str("sessionId", sessionID).
		Str("clientId", clientID).
		Int("chunks", expected).
		Int64("bytes", size).
		Str("path", final).
		Msg("audio finalized")

	return FinalizeResult{
		Path:     final,
		Bytes:    size,
		Chunks:   expected,
		MIMEType: MIMEForExtension(ext),
	}, nil
}

// mergeChunks concatenates chunks in index order into final via a partial
// file and an atomic rename.
func (f *Finalizer) mergeChunks(sessionID, clientID string, indices []int, final string) (int64, error) {
	tmp := final + partialSuffix
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create merge file: %w", err)
	}

	var size int64
	for _, idx := range indices {
		rc, err := f.chunks.Open(sessionID, clientID, idx)
		if err != nil {
			out.Close()
			os.Remove(tmp)
			return 0, err
		}
		n, err := io.Copy(out, rc)
		rc.Close()
		if err != nil {
			out.Close()
			os.Remove(tmp)
			return 0, fmt.Errorf("merge chunk %d: %w", idx, err)
		}
		size += n
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("promote artifact: %w", err)
	}
	return size, nil
}

// UploadFullBlob writes the artifact directly from a single upload. This is
// the fallback when chunking was never used: it is authoritative over any
// partial chunk leftovers but never replaces an already-finalized artifact.
func (f *Finalizer) UploadFullBlob(sessionID string, data []byte, mimeType string) (FinalizeResult, error) {
	if len(data) == 0 {
		return FinalizeResult{}, fmt.Errorf("audio payload is empty")
	}
	if _, ok := f.Artifact(sessionID); ok {
		return FinalizeResult{}, ErrAlreadyFinalized
	}

	if err := f.chunks.ClearSession(sessionID); err != nil {
		return FinalizeResult{}, err
	}
	f.removePartials(sessionID)

	ext := ExtensionForMIME(mimeType)
	final := filepath.Join(f.dir, sessionID+"."+ext)
	if err := writeFileAtomic(final, data); err != nil {
		return FinalizeResult{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := f.sessions.SetHasAudio(sessionID); err != nil {
		return FinalizeResult{}, err
	}

	f.metrics.RecordFinalize("full_blob", int64(len(data)))
	f.log.Info().
		Str("sessionId", sessionID).
		Int("bytes", len(data)).
		Str("path", final).
		Msg("full audio blob stored")

	return FinalizeResult{
		Path:     final,
		Bytes:    int64(len(data)),
		MIMEType: MIMEForExtension(ext),
	}, nil
}

// EnsureSessionAudioPath returns the session's artifact, recovering a
// usable one from leftovers when explicit finalize was skipped (client
// closed mid-flow). The authoritative path is Finalize; this is the
// graceful degradation behind transcription and export requests.
func (f *Finalizer) EnsureSessionAudioPath(sessionID string) (string, error) {
	if path, ok := f.Artifact(sessionID); ok {
		return path, nil
	}

	// Interrupted merge output can be promoted as-is.
	matches, _ := filepath.Glob(filepath.Join(f.dir, sessionID+".*"+partialSuffix))
	for _, tmp := range matches {
		final := strings.TrimSuffix(tmp, partialSuffix)
		if info, err := os.Stat(tmp); err == nil && info.Size() > 0 {
			if err := os.Rename(tmp, final); err == nil {
				f.log.Warn().
					Str("sessionId", sessionID).
					Str("path", final).
					Msg("promoted interrupted merge to artifact")
				_ = f.sessions.SetHasAudio(sessionID)
				return final, nil
			}
		}
	}

	// A still-open chunk set: merge the best client's contiguous prefix.
	clients, err := f.chunks.Clients(sessionID)
	if err != nil {
		return "", err
	}
	bestClient := ""
	var bestIndices []int
	for _, c := range clients {
		indices, err := f.chunks.List(sessionID, c)
		if err != nil {
			return "", err
		}
		contiguous := indices[:NextIndex(indices)]
		if len(contiguous) > len(bestIndices) {
			bestClient, bestIndices = c, contiguous
		}
	}
	if len(bestIndices) > 0 {
		final := filepath.Join(f.dir, sessionID+".webm")
		size, err := f.mergeChunks(sessionID, bestClient, bestIndices, final)
		if err != nil {
			return "", err
		}
		if err := f.chunks.Clear(sessionID, bestClient); err != nil {
			return "", err
		}
		_ = f.sessions.SetHasAudio(sessionID)
		f.log.Warn().
			Str("sessionId", sessionID).
			Str("clientId", bestClient).
			Int("chunks", len(bestIndices)).
			Int64("bytes", size).
			Msg("recovered unfinalized chunk set into artifact")
		return final, nil
	}

	return "", &faults.NotFoundError{Kind: "artifact", ID: sessionID}
}

// RemoveArtifact deletes the session's artifact and any leftovers. Used
// when a recording is deleted.
func (f *Finalizer) RemoveArtifact(sessionID string) error {
	if path, ok := f.Artifact(sessionID); ok {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove artifact: %w", err)
		}
	}
	f.removePartials(sessionID)
	return f.chunks.ClearSession(sessionID)
}

func (f *Finalizer) removePartials(sessionID string) {
	matches, _ := filepath.Glob(filepath.Join(f.dir, sessionID+".*"+partialSuffix))
	for _, p := range matches {
		_ = os.Remove(p)
	}
}

// missingIndices lists the indices in [0, expected) absent from sorted.
func missingIndices(sorted []int, expected int) []int {
	present := make(map[int]struct{}, len(sorted))
	for _, n := range sorted {
		present[n] = struct{}{}
	}
	var missing []int
	for i := 0; i < expected; i++ {
		if _, ok := present[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
