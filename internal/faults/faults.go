// Package faults defines the error taxonomy shared across the upload,
// finalize and job pipeline. Every boundary that can fail returns one of
// these types so callers can map them to HTTP status codes and job
// failure states without string matching.
package faults

import (
	"errors"
	"fmt"
)

// ConflictError reports a chunk re-upload whose payload size does not match
// what is already stored at the same (session, client, index). The client's
// index bookkeeping is inconsistent; it should re-derive its next expected
// index from NextIndex.
type ConflictError struct {
	SessionID  string
	ClientID   string
	Index      int
	StoredSize int
	GotSize    int
	NextIndex  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("chunk conflict: session=%s client=%s index=%d storedBytes=%d gotBytes=%d",
		e.SessionID, e.ClientID, e.Index, e.StoredSize, e.GotSize)
}

// IncompleteUploadError reports a finalize attempt before all declared
// chunks arrived. Recoverable: retry finalize after the missing chunks land.
type IncompleteUploadError struct {
	SessionID string
	ClientID  string
	Have      int
	Want      int
	Missing   []int
}

func (e *IncompleteUploadError) Error() string {
	return fmt.Sprintf("incomplete upload: session=%s client=%s have=%d want=%d",
		e.SessionID, e.ClientID, e.Have, e.Want)
}

// NotFoundError reports an unknown session, job or artifact.
type NotFoundError struct {
	Kind string // "session", "job", "artifact", "transcript"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// EngineFailure wraps an error raised by a transcription or summarization
// engine. It carries the stage so job failure messages are stage-qualified.
type EngineFailure struct {
	Stage  string
	Engine string
	Err    error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Engine, e.Err)
}

func (e *EngineFailure) Unwrap() error { return e.Err }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsIncompleteUpload reports whether err is an IncompleteUploadError.
func IsIncompleteUpload(err error) bool {
	var ie *IncompleteUploadError
	return errors.As(err, &ie)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
