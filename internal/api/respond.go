package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/faults"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`

	// Chunk conflict details, present on size-mismatch rejections.
	ChunkIndex *int `json:"chunkIndex,omitempty"`
	StoredSize *int `json:"storedSize,omitempty"`
	GotSize    *int `json:"gotSize,omitempty"`
	NextIndex  *int `json:"nextIndex,omitempty"`

	// Incomplete upload details, present on premature finalize.
	Have    *int  `json:"have,omitempty"`
	Want    *int  `json:"want,omitempty"`
	Missing []int `json:"missing,omitempty"`
}

// writeError maps the fault taxonomy to HTTP statuses. Typed faults carry
// enough detail for the client to self-correct; anything unrecognized is a
// plain 500.
func writeError(w http.ResponseWriter, err error) {
	var conflict *faults.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:      conflict.Error(),
			ChunkIndex: &conflict.Index,
			StoredSize: &conflict.StoredSize,
			GotSize:    &conflict.GotSize,
			NextIndex:  &conflict.NextIndex,
		})
		return
	}

	var incomplete *faults.IncompleteUploadError
	if errors.As(err, &incomplete) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   incomplete.Error(),
			Have:    &incomplete.Have,
			Want:    &incomplete.Want,
			Missing: incomplete.Missing,
		})
		return
	}

	if faults.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if errors.Is(err, audio.ErrAlreadyFinalized) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	log.Error().Err(err).Msg("Internal error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}
