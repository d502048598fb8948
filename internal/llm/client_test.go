package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompleteOpenAIFormat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"grammarSuggestions": []}`}},
			},
			"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 40},
		})
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderOpenAI, APIKey: "test-key", BaseURL: server.URL, Model: "gpt-test"}

	result, err := client.Complete(context.Background(), cfg, "system prompt", "user prompt", DefaultCallOptions())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Content != `{"grammarSuggestions": []}` {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.InputTokens != 120 || result.OutputTokens != 40 {
		t.Errorf("unexpected usage: %d/%d", result.InputTokens, result.OutputTokens)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}

	messages, ok := gotBody["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected system+user messages, got %v", gotBody["messages"])
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "system prompt" {
		t.Errorf("unexpected first message: %v", first)
	}
}

func TestCompleteAnthropicFormat(t *testing.T) {
	var gotAPIKey, gotVersion string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "analysis output"}},
			"usage":   map[string]int{"input_tokens": 200, "output_tokens": 80},
		})
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderAnthropic, APIKey: "anthropic-key", BaseURL: server.URL, Model: "claude-test"}

	result, err := client.Complete(context.Background(), cfg, "sys", "usr", DefaultCallOptions())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Content != "analysis output" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if gotAPIKey != "anthropic-key" || gotVersion != "2023-06-01" {
		t.Errorf("unexpected headers: key=%q version=%q", gotAPIKey, gotVersion)
	}
	if gotBody["system"] != "sys" {
		t.Errorf("anthropic system prompt must be top-level, got %v", gotBody["system"])
	}
}

func TestCompleteNon200ReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: server.URL, Model: "m"}

	_, err := client.Complete(context.Background(), cfg, "s", "u", DefaultCallOptions())
	if err == nil {
		t.Fatal("expected error for 429 response")
	}

	var statusErr *APIStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected APIStatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", statusErr.StatusCode)
	}

	// The status error classifies as a rate-limit failure.
	if got := Classify(err); got.Category != CategoryRateLimit {
		t.Errorf("classified as %s, want %s", got.Category, CategoryRateLimit)
	}
}

func TestCompleteTimeoutClassifiesAsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: server.URL, Model: "m"}
	opts := DefaultCallOptions()
	opts.Timeout = 50 * time.Millisecond

	_, err := client.Complete(context.Background(), cfg, "s", "u", opts)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got := Classify(err); got.Category != CategoryTimeout {
		t.Errorf("classified as %s, want %s", got.Category, CategoryTimeout)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderOpenAI, Model: "m"}

	_, err := client.Complete(context.Background(), cfg, "s", "u", DefaultCallOptions())
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
}

func TestCompleteOllamaNeedsNoKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": "local output"},
			"prompt_eval_count": 10,
			"eval_count":        5,
		})
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderOllama, BaseURL: server.URL, Model: "llama-test"}

	result, err := client.Complete(context.Background(), cfg, "s", "u", DefaultCallOptions())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Content != "local output" {
		t.Errorf("unexpected content: %q", result.Content)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewClient(nil, nil)
	cfg := Config{Provider: ProviderOpenAI, APIKey: "k", BaseURL: server.URL, Model: "m"}

	_, err := client.Complete(context.Background(), cfg, "s", "u", DefaultCallOptions())
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}
