package store

import (
	"path/filepath"
	"testing"
	"time"

	"meeting-sidekick/internal/faults"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sidekick.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	if _, err := s.CreateSession("sess-1", "Sync", "client-a", started); err != nil {
		t.Fatalf("create: %v", err)
	}

	sess, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Title != "Sync" || sess.ClientID != "client-a" {
		t.Errorf("session = %+v", sess)
	}
	if !sess.StartedAt.Equal(started) {
		t.Errorf("startedAt = %v, want %v", sess.StartedAt, started)
	}
	if sess.EndedAt != nil || sess.HasAudio || sess.HasTranscript || sess.HasSummary {
		t.Errorf("new session carries state: %+v", sess)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetSession("nope"); !faults.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("sess-1", "", "", time.Now())

	first := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if err := s.EndSession("sess-1", first); err != nil {
		t.Fatalf("end: %v", err)
	}
	// A second end must not move the stamp.
	if err := s.EndSession("sess-1", first.Add(time.Hour)); err != nil {
		t.Fatalf("second end: %v", err)
	}

	sess, _ := s.GetSession("sess-1")
	if sess.EndedAt == nil || !sess.EndedAt.Equal(first) {
		t.Errorf("endedAt = %v, want %v", sess.EndedAt, first)
	}
}

func TestSessionFlags(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("sess-1", "", "", time.Now())

	if err := s.SetHasAudio("sess-1"); err != nil {
		t.Fatalf("set has_audio: %v", err)
	}
	if err := s.SetHasSummary("sess-1"); err != nil {
		t.Fatalf("set has_summary: %v", err)
	}
	if err := s.SetTitle("sess-1", "Renamed"); err != nil {
		t.Fatalf("set title: %v", err)
	}

	sess, _ := s.GetSession("sess-1")
	if !sess.HasAudio || !sess.HasSummary || sess.Title != "Renamed" {
		t.Errorf("session = %+v", sess)
	}

	if err := s.SetHasAudio("nope"); !faults.IsNotFound(err) {
		t.Errorf("expected NotFoundError for unknown session, got %v", err)
	}
}

func TestListSessions_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.CreateSession("old", "", "", base)
	s.CreateSession("new", "", "", base.Add(time.Hour))

	sessions, err := s.ListSessions(10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "new" {
		t.Errorf("sessions = %+v", sessions)
	}

	sessions, err = s.ListSessions(1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "old" {
		t.Errorf("page = %+v", sessions)
	}
}

func TestReplaceTranscript(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("sess-1", "", "", time.Now())

	segments := []Segment{
		{Seq: 0, Text: "first", StartTime: 0, EndTime: 2, Confidence: 0.9},
		{Seq: 1, Text: "second", StartTime: 2, EndTime: 4, Confidence: 0.8},
	}
	if err := s.ReplaceTranscript("sess-1", segments); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.Transcript("sess-1")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(got) != 2 || got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("transcript = %+v", got)
	}

	sess, _ := s.GetSession("sess-1")
	if !sess.HasTranscript {
		t.Error("expected has_transcript")
	}

	// Replacement swaps the whole transcript.
	if err := s.ReplaceTranscript("sess-1", []Segment{{Seq: 0, Text: "only"}}); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, _ = s.Transcript("sess-1")
	if len(got) != 1 || got[0].Text != "only" {
		t.Errorf("transcript after replace = %+v", got)
	}
}

func TestReplaceTranscript_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	err := s.ReplaceTranscript("nope", []Segment{{Seq: 0, Text: "x"}})
	if !faults.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestDeleteSession_CascadesTranscript(t *testing.T) {
	s := newTestStore(t)
	s.CreateSession("sess-1", "", "", time.Now())
	s.ReplaceTranscript("sess-1", []Segment{{Seq: 0, Text: "x"}})

	if err := s.DeleteSession("sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSession("sess-1"); !faults.IsNotFound(err) {
		t.Error("session still present")
	}
	segments, err := s.Transcript("sess-1")
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("segments survived delete: %+v", segments)
	}
}
