package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/metrics"
)

// OllamaBackend summarizes via a local Ollama server's /api/chat endpoint.
type OllamaBackend struct {
	host    string
	model   string
	client  *http.Client
	metrics *metrics.Metrics
}

// NewOllamaBackend creates a backend talking to the Ollama server at host,
// e.g. "http://localhost:11434". Local models can be slow, so no request
// timeout is set; cancellation comes from the context.
func NewOllamaBackend(host, model string, m *metrics.Metrics) *OllamaBackend {
	return &OllamaBackend{
		host:    strings.TrimRight(host, "/"),
		model:   model,
		client:  &http.Client{},
		metrics: m,
	}
}

func (b *OllamaBackend) Name() string  { return "ollama" }
func (b *OllamaBackend) Model() string { return b.model }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Summarize runs one non-streaming chat against the Ollama server.
func (b *OllamaBackend) Summarize(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model: b.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	b.metrics.RecordEngineCall(b.Name(), "summarize", err, time.Since(start).Seconds())
	if err != nil {
		return Result{}, &faults.EngineFailure{Stage: "summarizing", Engine: b.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, &faults.EngineFailure{
			Stage:  "summarizing",
			Engine: b.Name(),
			Err:    fmt.Errorf("ollama returned %s", resp.Status),
		}
	}

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Result{}, &faults.EngineFailure{Stage: "summarizing", Engine: b.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	return Result{
		Content:          chat.Message.Content,
		Backend:          b.Name(),
		Model:            b.model,
		PromptTokens:     chat.PromptEvalCount,
		CompletionTokens: chat.EvalCount,
	}, nil
}
