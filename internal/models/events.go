// Package models defines the event payloads published to Kafka.
package models

import "time"

// JobStatusEvent is published on every job state transition.
type JobStatusEvent struct {
	EventType       string    `json:"eventType"`
	JobID           string    `json:"jobId"`
	SessionID       string    `json:"sessionId"`
	Kind            string    `json:"kind"`
	Status          string    `json:"status"`
	Stage           string    `json:"stage"`
	OverallProgress float64   `json:"overallProgress"`
	Timestamp       time.Time `json:"timestamp"`
}

// TranscriptReadyEvent is published when a session's transcript has been
// fully persisted.
type TranscriptReadyEvent struct {
	EventType       string    `json:"eventType"`
	SessionID       string    `json:"sessionId"`
	SegmentCount    int       `json:"segmentCount"`
	DurationSeconds float64   `json:"durationSeconds"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
}
