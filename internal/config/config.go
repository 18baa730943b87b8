// Package config loads service configuration from the environment into a
// single explicit struct that is constructed once at startup and passed
// down. Nothing reads the environment at call sites.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all settings for the service.
type Configuration struct {
	Service       ServiceConfig
	Storage       StorageConfig
	Transcription TranscriptionConfig
	Summarization SummarizationConfig
	Export        ExportConfig
	Jobs          JobsConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name     string
	HTTPPort string
	Env      string // "dev" enables console logging
}

type StorageConfig struct {
	DataDir      string // chunk + audio artifact root
	DatabasePath string // sqlite file
}

// TranscriptionConfig selects and tunes the transcription engine.
type TranscriptionConfig struct {
	Engine       string // mock, whisper-api, google
	OpenAIAPIKey string
	LanguageCode string
	SampleRateHz int
}

// SummarizationConfig selects and tunes the summarization backend.
type SummarizationConfig struct {
	Backend         string // mock, openai, ollama, anthropic
	OpenAIAPIKey    string
	OpenAIModel     string
	OllamaHost      string
	OllamaModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

type ExportConfig struct {
	VaultPath     string
	PreviewLength int
}

// JobsConfig controls retention of terminal job records. Running jobs are
// never cancelled server-side; the polling client applies its own timeout.
type JobsConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicJobStatus   string
	TopicTranscripts string
	Principal        string
}

type ObservabilityConfig struct {
	LogLevel    string
	MetricsPort string
}

// Load reads configuration from environment variables, falling back to
// defaults on missing or unparseable values.
func Load() *Configuration {
	dataDir := envOrDefault("DATA_DIR", "data")
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-meeting-sidekick")

	return &Configuration{
		Service: ServiceConfig{
			Name:     principal,
			HTTPPort: envOrDefault("HTTP_PORT", "8000"),
			Env:      envOrDefault("ENV", ""),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			DatabasePath: envOrDefault("DATABASE_PATH", filepath.Join(dataDir, "sidekick.db")),
		},
		Transcription: TranscriptionConfig{
			Engine:       envOrDefault("TRANSCRIPTION_ENGINE", "mock"),
			OpenAIAPIKey: envOrDefault("OPENAI_API_KEY", ""),
			LanguageCode: envOrDefault("TRANSCRIPTION_LANGUAGE", "en-US"),
			SampleRateHz: envOrDefaultInt("TRANSCRIPTION_SAMPLE_RATE_HZ", 16000),
		},
		Summarization: SummarizationConfig{
			Backend:         envOrDefault("SUMMARIZATION_BACKEND", "mock"),
			OpenAIAPIKey:    envOrDefault("OPENAI_API_KEY", ""),
			OpenAIModel:     envOrDefault("OPENAI_SUMMARIZATION_MODEL", "gpt-4o-mini"),
			OllamaHost:      envOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			OllamaModel:     envOrDefault("OLLAMA_MODEL", "llama3.2"),
			AnthropicAPIKey: envOrDefault("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  envOrDefault("ANTHROPIC_SUMMARIZATION_MODEL", "claude-3-haiku-20240307"),
		},
		Export: ExportConfig{
			VaultPath:     envOrDefault("VAULT_PATH", filepath.Join(dataDir, "vault")),
			PreviewLength: envOrDefaultInt("EXPORT_PREVIEW_LENGTH", 200),
		},
		Jobs: JobsConfig{
			Retention:     envOrDefaultDuration("JOB_RETENTION", 30*time.Minute),
			SweepInterval: envOrDefaultDuration("JOB_SWEEP_INTERVAL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled:          envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:          envOrDefaultStrings("KAFKA_BROKERS", nil),
			TopicJobStatus:   envOrDefault("KAFKA_TOPIC_JOB_STATUS", "meeting.job.status"),
			TopicTranscripts: envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "meeting.transcript.ready"),
			Principal:        envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultStrings(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
