package store

import "time"

// Session is one recording attempt, from start to eventual export. It is
// the long-lived anchor the audio artifact, transcript and jobs reference
// by id.
type Session struct {
	ID            string     `json:"id"`
	Title         string     `json:"title,omitempty"`
	ClientID      string     `json:"clientId,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	HasAudio      bool       `json:"hasAudio"`
	HasTranscript bool       `json:"hasTranscript"`
	HasSummary    bool       `json:"hasSummary"`
}

// Segment is one ordered, timestamped slice of a session's transcript.
type Segment struct {
	Seq        int     `json:"seq"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}
