package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meeting-sidekick/internal/observability/metrics"
)

func TestAnthropicBackend_Summarize(t *testing.T) {
	var gotRequest anthropicMessagesRequest
	var gotAPIKey, gotVersion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "## Summary\n\n"},
				{"type": "text", "text": "- Shipped the thing."}
			],
			"usage": {"input_tokens": 120, "output_tokens": 18}
		}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend("test-key", "claude-3-haiku-20240307", metrics.DefaultMetrics)
	b.baseURL = srv.URL

	res, err := b.Summarize(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if !strings.Contains(res.Content, "Shipped the thing.") {
		t.Errorf("content = %q", res.Content)
	}
	if res.PromptTokens != 120 || res.CompletionTokens != 18 {
		t.Errorf("tokens = %d/%d, want 120/18", res.PromptTokens, res.CompletionTokens)
	}
	if res.Backend != "anthropic" || res.Model != "claude-3-haiku-20240307" {
		t.Errorf("identity = %s/%s", res.Backend, res.Model)
	}

	if gotAPIKey != "test-key" {
		t.Errorf("x-api-key = %q", gotAPIKey)
	}
	if gotVersion != anthropicVersion {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
	if gotRequest.System != "system prompt" {
		t.Errorf("system = %q, want top-level system field", gotRequest.System)
	}
	if len(gotRequest.Messages) != 1 || gotRequest.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want a single user message", gotRequest.Messages)
	}
	if gotRequest.MaxTokens != 2048 {
		t.Errorf("max_tokens = %d, want 2048", gotRequest.MaxTokens)
	}
}

func TestAnthropicBackend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewAnthropicBackend("test-key", "claude-3-haiku-20240307", metrics.DefaultMetrics)
	b.baseURL = srv.URL

	_, err := b.Summarize(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error on non-200 response")
	}
	if !strings.Contains(err.Error(), "summarizing failed (anthropic)") {
		t.Errorf("error should carry the stage and engine, got %v", err)
	}
}
