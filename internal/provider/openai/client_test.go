package openai

import (
	"errors"
	"testing"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/llm"
	"github.com/duolog/duolog-server/internal/metrics"
)

func newTestClient(t *testing.T, apiKey string) *Client {
	t.Helper()
	cfg := &config.Config{
		OpenAI: config.ProviderConfig{
			APIKey:         apiKey,
			Model:          "gpt-4o",
			MaxTokens:      1024,
			TimeoutSeconds: 30,
		},
	}
	client, err := NewClient(cfg, metrics.NewStore())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestSelectClientMissingKey(t *testing.T) {
	client := newTestClient(t, "")
	if _, err := client.selectClient(""); !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSelectClientOverrideKey(t *testing.T) {
	client := newTestClient(t, "")
	if _, err := client.selectClient("sk-user-key"); err != nil {
		t.Fatalf("expected override key to be accepted, got %v", err)
	}
	if len(client.clients) != 1 {
		t.Fatalf("expected 1 cached client, got %d", len(client.clients))
	}

	if _, err := client.selectClient("sk-user-key"); err != nil {
		t.Fatalf("unexpected error on cached key: %v", err)
	}
	if len(client.clients) != 1 {
		t.Fatalf("expected cache hit, got %d clients", len(client.clients))
	}
}

func TestBuildParams(t *testing.T) {
	client := newTestClient(t, "sk-test")
	req := llm.CompletionRequest{
		Prompt: "continue the discussion",
		System: "you are a collaborator",
		History: []llm.HistoryEntry{
			{Role: "assistant", Content: "A1"},
			{Role: "user", Content: "Q1"},
		},
	}

	params := client.buildParams(req)
	if string(params.Model) != "gpt-4o" {
		t.Fatalf("unexpected model: %s", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(params.Messages))
	}
	if params.MaxCompletionTokens.Value != 1024 {
		t.Fatalf("expected configured max tokens, got %d", params.MaxCompletionTokens.Value)
	}
	if !params.StreamOptions.IncludeUsage.Value {
		t.Fatalf("expected usage reporting to be requested")
	}
}

func TestBuildParamsMaxTokensOverride(t *testing.T) {
	client := newTestClient(t, "sk-test")
	params := client.buildParams(llm.CompletionRequest{Prompt: "p", MaxTokens: 256})
	if params.MaxCompletionTokens.Value != 256 {
		t.Fatalf("expected override max tokens, got %d", params.MaxCompletionTokens.Value)
	}
}

func TestProviderIdentity(t *testing.T) {
	client := newTestClient(t, "sk-test")
	if client.Name() != ProviderName {
		t.Fatalf("unexpected name: %s", client.Name())
	}
	if client.ModelID() != "gpt-4o" {
		t.Fatalf("unexpected model id: %s", client.ModelID())
	}
	if client.Mode() != llm.ModeIncremental {
		t.Fatalf("expected incremental mode")
	}
}
