// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level   string // debug, info, warn, error
	Console bool   // human-readable console output for dev
	Service string // service name stamped on every event
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Console {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithSession returns a logger with recording session context.
func WithSession(sessionID, clientID string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Str("clientId", clientID).
		Logger()
}

// WithJob returns a logger with job context.
func WithJob(jobID, kind, sessionID string) zerolog.Logger {
	return log.With().
		Str("jobId", jobID).
		Str("jobKind", kind).
		Str("sessionId", sessionID).
		Logger()
}
