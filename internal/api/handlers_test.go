package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"meeting-sidekick/internal/audio"
	"meeting-sidekick/internal/engine/summarize"
	"meeting-sidekick/internal/engine/transcribe/mock"
	"meeting-sidekick/internal/events"
	"meeting-sidekick/internal/jobs"
	"meeting-sidekick/internal/observability/metrics"
	"meeting-sidekick/internal/orchestrate"
	"meeting-sidekick/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "sidekick.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := metrics.DefaultMetrics
	chunks, err := audio.NewChunkStore(filepath.Join(dir, "chunks"), m)
	if err != nil {
		t.Fatalf("chunk store: %v", err)
	}
	fin, err := audio.NewFinalizer(chunks, filepath.Join(dir, "artifacts"), st, m)
	if err != nil {
		t.Fatalf("finalizer: %v", err)
	}

	vault := filepath.Join(dir, "vault")
	if err := os.MkdirAll(vault, 0o755); err != nil {
		t.Fatalf("vault dir: %v", err)
	}

	orch := orchestrate.New(context.Background(), st, fin, jobs.NewLedger(m),
		mock.New(), summarize.NewMockBackend(), events.New(nil),
		orchestrate.Config{VaultPath: vault, PreviewLength: 200}, m)

	return NewHandler(st, chunks, fin, orch), st
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	h, st := newTestHandler(t)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			decoded = nil
		}
	}
	return resp, decoded
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/sessions", map[string]string{"title": "Test"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create session: missing id")
	}
	return id
}

func putChunk(t *testing.T, base, sessionID string, index, size int) (*http.Response, map[string]any) {
	t.Helper()
	return doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/api/recordings/%s/audio/chunks/%d", base, sessionID, index),
		bytes.Repeat([]byte{0xAB}, size),
		map[string]string{"X-Client-ID": "client-a", "Content-Type": "application/octet-stream"})
}

func finalize(t *testing.T, base, sessionID string, count int) (*http.Response, map[string]any) {
	t.Helper()
	return doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/recordings/%s/audio/finalize", base, sessionID),
		map[string]any{"mimeType": "audio/webm", "uploadedChunkCount": count},
		map[string]string{"X-Client-ID": "client-a"})
}

func pollJob(t *testing.T, base, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := doJSON(t, http.MethodGet, base+"/api/jobs/"+jobID, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("poll job: status %d", resp.StatusCode)
		}
		status, _ := body["status"].(string)
		if status == "completed" || status == "failed" {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestChunkUpload_OutOfOrderFinalize(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	// Arrival order 2, 0, 1; the merged artifact must still be 3 chunks.
	for _, index := range []int{2, 0, 1} {
		resp, _ := putChunk(t, srv.URL, id, index, 4096)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("put chunk %d: status %d", index, resp.StatusCode)
		}
	}

	resp, body := finalize(t, srv.URL, id, 3)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize: status %d body %v", resp.StatusCode, body)
	}
	if body["status"] != "finalized" {
		t.Errorf("status = %v, want finalized", body["status"])
	}
	if got := body["bytes"].(float64); got != 12288 {
		t.Errorf("artifact bytes = %v, want 12288", got)
	}
}

func TestChunkUpload_DuplicateIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	for i := 0; i < 2; i++ {
		resp, _ := putChunk(t, srv.URL, id, 0, 2048)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("attempt %d: status %d", i, resp.StatusCode)
		}
	}
}

func TestChunkUpload_SizeMismatchConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	if resp, _ := putChunk(t, srv.URL, id, 0, 2048); resp.StatusCode != http.StatusOK {
		t.Fatalf("first upload failed: %d", resp.StatusCode)
	}

	resp, body := putChunk(t, srv.URL, id, 0, 4096)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if got := body["storedSize"].(float64); got != 2048 {
		t.Errorf("storedSize = %v, want 2048", got)
	}
	if got := body["nextIndex"].(float64); got != 1 {
		t.Errorf("nextIndex = %v, want 1", got)
	}
}

func TestFinalize_IncompleteUpload(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	putChunk(t, srv.URL, id, 0, 1024)
	putChunk(t, srv.URL, id, 2, 1024)

	resp, body := finalize(t, srv.URL, id, 3)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	missing, ok := body["missing"].([]any)
	if !ok || len(missing) != 1 || missing[0].(float64) != 1 {
		t.Errorf("missing = %v, want [1]", body["missing"])
	}
}

func TestFinalize_ZeroChunkCountRejected(t *testing.T) {
	srv, st := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, _ := finalize(t, srv.URL, id, 0)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	sess, err := st.GetSession(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.HasAudio {
		t.Error("zero-chunk finalize must not mark the session as having audio")
	}
}

func TestFinalize_RetryIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	putChunk(t, srv.URL, id, 0, 1024)
	if resp, _ := finalize(t, srv.URL, id, 1); resp.StatusCode != http.StatusOK {
		t.Fatalf("first finalize failed: %d", resp.StatusCode)
	}

	resp, body := finalize(t, srv.URL, id, 1)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "already_finalized" {
		t.Errorf("retry status = %v, want already_finalized", body["status"])
	}
}

func TestPutAudio_FullBlobFallback(t *testing.T) {
	srv, st := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPut,
		srv.URL+"/api/recordings/"+id+"/audio",
		bytes.Repeat([]byte{0xCD}, 8192),
		map[string]string{"Content-Type": "audio/webm"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body %v", resp.StatusCode, body)
	}

	sess, err := st.GetSession(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !sess.HasAudio {
		t.Error("expected has_audio after full blob upload")
	}
}

func TestPutAudio_RejectsOversizedBody(t *testing.T) {
	h, _ := newTestHandler(t)

	// A declared length over the cap is rejected before the body is read.
	req := httptest.NewRequest(http.MethodPut, "/api/recordings/sess/audio", bytes.NewReader(nil))
	req.ContentLength = maxAudioBytes + 1
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("sessionID", "sess")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.PutAudio(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTranscribeJob_EndToEnd(t *testing.T) {
	srv, st := newTestServer(t)
	id := createSession(t, srv.URL)

	putChunk(t, srv.URL, id, 0, 1024)
	finalize(t, srv.URL, id, 1)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/recordings/"+id+"/transcribe", nil, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d body %v", resp.StatusCode, body)
	}
	jobID := body["jobId"].(string)

	job := pollJob(t, srv.URL, jobID)
	if job["status"] != "completed" {
		t.Fatalf("job status = %v, error = %v", job["status"], job["error"])
	}
	if job["overallProgress"].(float64) != 1 {
		t.Errorf("overallProgress = %v, want 1", job["overallProgress"])
	}

	sess, _ := st.GetSession(id)
	if !sess.HasTranscript {
		t.Error("expected has_transcript after completed job")
	}
}

func TestExportJob_EndToEnd(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	putChunk(t, srv.URL, id, 0, 1024)
	finalize(t, srv.URL, id, 1)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/recordings/"+id+"/export",
		map[string]string{"title": "Weekly Sync", "template": "quick"}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d body %v", resp.StatusCode, body)
	}

	job := pollJob(t, srv.URL, body["jobId"].(string))
	if job["status"] != "completed" {
		t.Fatalf("job status = %v, error = %v", job["status"], job["error"])
	}
	result, ok := job["result"].(map[string]any)
	if !ok {
		t.Fatal("expected result payload on completed export")
	}
	if result["filename"] == "" {
		t.Error("expected filename in result")
	}
}

func TestGetJob_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTranscribe_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/recordings/nope/transcribe", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessions_EndCurrent(t *testing.T) {
	srv, _ := newTestServer(t)
	createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/current", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["endedAt"] == nil {
		t.Error("expected endedAt on ended session")
	}

	// No current session anymore.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/current", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second end: status = %d, want 404", resp.StatusCode)
	}
}

func TestRecordings_ListAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/recordings", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	recs := body["recordings"].([]any)
	if len(recs) != 1 {
		t.Fatalf("got %d recordings, want 1", len(recs))
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/recordings/"+id, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/recordings/"+id, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", resp.StatusCode)
	}
}

func TestTemplates_Catalog(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/templates", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	templates := body["templates"].([]any)
	if len(templates) != 4 {
		t.Errorf("got %d templates, want 4", len(templates))
	}
}
