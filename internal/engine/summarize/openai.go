package summarize

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"meeting-sidekick/internal/faults"
	"meeting-sidekick/internal/observability/metrics"
)

// OpenAIBackend summarizes via the OpenAI chat completions API.
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	metrics *metrics.Metrics
}

// NewOpenAIBackend creates a chat-completion summarization backend.
func NewOpenAIBackend(apiKey, model string, m *metrics.Metrics) *OpenAIBackend {
	return &OpenAIBackend{
		client:  openai.NewClient(apiKey),
		model:   model,
		metrics: m,
	}
}

func (b *OpenAIBackend) Name() string  { return "openai" }
func (b *OpenAIBackend) Model() string { return b.model }

// Summarize runs one chat completion and returns the rendered summary.
func (b *OpenAIBackend) Summarize(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	start := time.Now()
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	b.metrics.RecordEngineCall(b.Name(), "summarize", err, time.Since(start).Seconds())
	if err != nil {
		return Result{}, &faults.EngineFailure{Stage: "summarizing", Engine: b.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return Result{}, &faults.EngineFailure{Stage: "summarizing", Engine: b.Name(), Err: fmt.Errorf("empty completion")}
	}

	return Result{
		Content:          resp.Choices[0].Message.Content,
		Backend:          b.Name(),
		Model:            b.model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
