// Package summarize defines the summarization backend abstraction and its
// prompt templates. Backends are one-shot: one transcript in, one rendered
// summary out.
package summarize

import "context"

// Result is one produced summary with backend attribution.
type Result struct {
	Content          string
	Backend          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Backend is a pluggable summarization provider.
type Backend interface {
	Name() string
	Model() string
	Summarize(ctx context.Context, systemPrompt, userPrompt string) (Result, error)
}
