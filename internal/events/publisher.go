// Package events publishes job lifecycle and transcript events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"meeting-sidekick/internal/models"
	"meeting-sidekick/internal/observability/metrics"
)

// Publisher publishes job status and transcript-ready events to separate
// Kafka topics. When disabled it degrades to log-only mode so callers never
// need to branch.
type Publisher struct {
	writerStatus      *kafka.Writer
	writerTranscripts *kafka.Writer
	principal         string
	topicStatus       string
	topicTranscripts  string
	enabled           bool
	metrics           *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicStatus      string
	TopicTranscripts string
	Principal        string
	Enabled          bool
}

// New creates a Kafka event publisher with separate topics for job status
// and transcript-ready events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:        cfg.Principal,
			topicStatus:      cfg.TopicStatus,
			topicTranscripts: cfg.TopicTranscripts,
			enabled:          false,
			metrics:          m,
		}
	}

	// Longer dial timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerStatus := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicStatus,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerTranscripts := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranscripts,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicStatus", cfg.TopicStatus).
		Str("topicTranscripts", cfg.TopicTranscripts).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerStatus:      writerStatus,
		writerTranscripts: writerTranscripts,
		principal:         cfg.Principal,
		topicStatus:       cfg.TopicStatus,
		topicTranscripts:  cfg.TopicTranscripts,
		enabled:           true,
		metrics:           m,
	}
}

// PublishJobStatus publishes a job status event keyed by job id.
func (p *Publisher) PublishJobStatus(ctx context.Context, ev models.JobStatusEvent) error {
	return p.publish(ctx, p.writerStatus, p.topicStatus, ev.JobID, ev)
}

// PublishTranscriptReady publishes a transcript-ready event keyed by
// session id.
func (p *Publisher) PublishTranscriptReady(ctx context.Context, ev models.TranscriptReadyEvent) error {
	return p.publish(ctx, p.writerTranscripts, p.topicTranscripts, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordPublish(topic, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordPublish(topic, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordPublish(topic, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerStatus != nil {
		if e := p.writerStatus.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing status writer")
			err = e
		}
	}
	if p.writerTranscripts != nil {
		if e := p.writerTranscripts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcripts writer")
			err = e
		}
	}
	return err
}
