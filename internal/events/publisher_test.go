package events

import (
	"context"
	"testing"
	"time"

	"meeting-sidekick/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"nil brokers", &Config{Enabled: true, Brokers: nil}},
		{"nil config", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerStatus != nil {
				t.Error("expected nil status writer when disabled")
			}
			if p.writerTranscripts != nil {
				t.Error("expected nil transcripts writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:          false,
		Brokers:          []string{"localhost:9092"},
		TopicStatus:      "test.job.status",
		TopicTranscripts: "test.transcript.ready",
		Principal:        "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicStatus != "test.job.status" {
		t.Errorf("expected status topic 'test.job.status', got %s", p.topicStatus)
	}
	if p.topicTranscripts != "test.transcript.ready" {
		t.Errorf("expected transcripts topic 'test.transcript.ready', got %s", p.topicTranscripts)
	}
}

func TestPublisher_PublishJobStatus_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicStatus: "test.job.status", Principal: "test-svc"})

	ev := models.JobStatusEvent{
		EventType:       "job.status.changed",
		JobID:           "job-123",
		SessionID:       "sess-1",
		Kind:            "export",
		Status:          "running",
		Stage:           "transcribing",
		OverallProgress: 0.4,
		Timestamp:       time.Now().UTC(),
	}

	if err := p.PublishJobStatus(context.Background(), ev); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishTranscriptReady_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicTranscripts: "test.transcript.ready", Principal: "test-svc"})

	ev := models.TranscriptReadyEvent{
		EventType:       "transcript.ready",
		SessionID:       "sess-1",
		SegmentCount:    5,
		DurationSeconds: 18.4,
		Confidence:      0.94,
		Timestamp:       time.Now().UTC(),
	}

	if err := p.PublishTranscriptReady(context.Background(), ev); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilWriters(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
