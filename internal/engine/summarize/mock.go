package summarize

import (
	"context"
	"fmt"
	"strings"
)

// MockBackend produces a deterministic summary for testing and local
// development without an LLM.
type MockBackend struct {
	// Err, when set, is returned from every Summarize call.
	Err error
}

// NewMockBackend creates a mock summarization backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (b *MockBackend) Name() string  { return "mock" }
func (b *MockBackend) Model() string { return "mock-v1" }

// Summarize echoes a short canned summary derived from the prompt size.
func (b *MockBackend) Summarize(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	if b.Err != nil {
		return Result{}, b.Err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	sb.WriteString("- Discussed the recorded meeting and captured its main points.\n")
	sb.WriteString("- Action items were assigned where owners were mentioned.\n")
	sb.WriteString(fmt.Sprintf("- Transcript length: %d characters.\n", len(userPrompt)))

	return Result{
		Content:          sb.String(),
		Backend:          b.Name(),
		Model:            b.Model(),
		PromptTokens:     len(userPrompt) / 4,
		CompletionTokens: 40,
	}, nil
}
