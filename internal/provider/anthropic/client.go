package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/llm"
	"github.com/duolog/duolog-server/internal/metrics"
)

// ProviderName is the speaker name used in stream events.
const ProviderName = "anthropic"

// Client streams messages from the Anthropic API.
type Client struct {
	cfg     *config.Config
	metrics *metrics.Store
	mu      sync.Mutex
	clients map[string]anthropicsdk.Client
}

// NewClient creates an Anthropic provider client.
func NewClient(cfg *config.Config, metricsStore *metrics.Store) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if metricsStore == nil {
		return nil, errors.New("metrics store is nil")
	}
	return &Client{
		cfg:     cfg,
		metrics: metricsStore,
		clients: make(map[string]anthropicsdk.Client),
	}, nil
}

// Name returns the provider speaker name.
func (c *Client) Name() string {
	return ProviderName
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string {
	return c.cfg.Anthropic.Model
}

// Mode declares incremental chunk delivery: each text delta is a new suffix.
func (c *Client) Mode() llm.DeliveryMode {
	return llm.ModeIncremental
}

// StreamCompletion runs one streaming message, invoking onChunk for every
// text delta in arrival order. Input tokens arrive in the message_start
// event, output tokens in the final message_delta.
func (c *Client) StreamCompletion(ctx context.Context, req llm.CompletionRequest, onChunk func(string)) (llm.StreamResult, error) {
	start := time.Now()

	client, err := c.selectClient(req.APIKey)
	if err != nil {
		c.metrics.RecordError(ProviderName, time.Since(start))
		return llm.StreamResult{}, err
	}

	params := c.buildParams(req)
	stream := client.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var content strings.Builder
	var usage llm.Usage
	hasUsage := false
	chunks := 0

	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropicsdk.MessageStartEvent:
			usage.InputTokens = int(eventVariant.Message.Usage.InputTokens)
		case anthropicsdk.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropicsdk.TextDelta:
				if deltaVariant.Text != "" {
					content.WriteString(deltaVariant.Text)
					chunks++
					if onChunk != nil {
						onChunk(deltaVariant.Text)
					}
				}
			}
		case anthropicsdk.MessageDeltaEvent:
			usage.OutputTokens = int(eventVariant.Usage.OutputTokens)
			usage.TotalTokens = usage.InputTokens + usage.OutputTokens
			hasUsage = true
		}
	}

	c.metrics.RecordChunks(ProviderName, chunks)

	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			c.metrics.RecordCancellation(ProviderName)
			return llm.StreamResult{}, err
		}
		c.metrics.RecordError(ProviderName, time.Since(start))
		return llm.StreamResult{}, fmt.Errorf("anthropic stream: %w", err)
	}

	result := llm.StreamResult{
		Content:  content.String(),
		Usage:    usage,
		HasUsage: hasUsage,
	}
	c.metrics.RecordSuccess(ProviderName, time.Since(start), usage)
	return result, nil
}

func (c *Client) selectClient(overrideKey string) (anthropicsdk.Client, error) {
	key := strings.TrimSpace(overrideKey)
	if key == "" {
		key = strings.TrimSpace(c.cfg.Anthropic.APIKey)
	}
	if key == "" {
		return anthropicsdk.Client{}, llm.ErrMissingAPIKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	timeout := time.Duration(c.cfg.Anthropic.TimeoutSeconds) * time.Second
	client := anthropicsdk.NewClient(
		option.WithAPIKey(key),
		option.WithRequestTimeout(timeout),
	)
	c.clients[key] = client
	return client, nil
}

func (c *Client) buildParams(req llm.CompletionRequest) anthropicsdk.MessageNewParams {
	messages := make([]anthropicsdk.MessageParam, 0, len(req.History)+1)
	for _, entry := range req.History {
		block := anthropicsdk.NewTextBlock(entry.Content)
		if strings.EqualFold(entry.Role, "assistant") {
			messages = append(messages, anthropicsdk.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropicsdk.NewUserMessage(block))
	}
	messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.Anthropic.MaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.cfg.Anthropic.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	return params
}

var _ llm.Provider = (*Client)(nil)
