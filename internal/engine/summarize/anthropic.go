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

const anthropicBaseURL = "https://api.anthropic.com"
const anthropicVersion = "2023-06-01"

// AnthropicBackend summarizes via the Anthropic Messages API. The system
// prompt travels in the top-level system field, not as a message.
type AnthropicBackend struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	metrics *metrics.Metrics
}

// NewAnthropicBackend creates a Claude summarization backend.
func NewAnthropicBackend(apiKey, model string, m *metrics.Metrics) *AnthropicBackend {
	return &AnthropicBackend{
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{},
		metrics: m,
	}
}

func (b *AnthropicBackend) Name() string  { return "anthropic" }
func (b *AnthropicBackend) Model() string { return b.model }

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Summarize runs one messages call and concatenates the text blocks of the
// response.
func (b *AnthropicBackend) Summarize(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	body, err := json.Marshal(anthropicMessagesRequest{
		Model:     b.model,
		MaxTokens: 2048,
		System:    systemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

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
			Err:    fmt.Errorf("anthropic returned %s", resp.Status),
		}
	}

	var messages anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return Result{}, &faults.EngineFailure{Stage: "summarizing", Engine: b.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	var sb strings.Builder
	for _, block := range messages.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := sb.String()
	if content == "" {
		return Result{}, &faults.EngineFailure{Stage: "summarizing", Engine: b.Name(), Err: fmt.Errorf("empty completion")}
	}

	return Result{
		Content:          content,
		Backend:          b.Name(),
		Model:            b.model,
		PromptTokens:     messages.Usage.InputTokens,
		CompletionTokens: messages.Usage.OutputTokens,
	}, nil
}
