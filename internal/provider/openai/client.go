package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/llm"
	"github.com/duolog/duolog-server/internal/metrics"
)

// ProviderName is the speaker name used in stream events.
const ProviderName = "openai"

// Client streams chat completions from the OpenAI API.
type Client struct {
	cfg     *config.Config
	metrics *metrics.Store
	mu      sync.Mutex
	clients map[string]openaisdk.Client
}

// NewClient creates an OpenAI provider client.
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
		clients: make(map[string]openaisdk.Client),
	}, nil
}

// Name returns the provider speaker name.
func (c *Client) Name() string {
	return ProviderName
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string {
	return c.cfg.OpenAI.Model
}

// Mode declares incremental chunk delivery: each chunk is a new suffix.
func (c *Client) Mode() llm.DeliveryMode {
	return llm.ModeIncremental
}

// StreamCompletion runs one streaming completion, invoking onChunk for
// every content delta in arrival order.
func (c *Client) StreamCompletion(ctx context.Context, req llm.CompletionRequest, onChunk func(string)) (llm.StreamResult, error) {
	start := time.Now()

	client, err := c.selectClient(req.APIKey)
	if err != nil {
		c.metrics.RecordError(ProviderName, time.Since(start))
		return llm.StreamResult{}, err
	}

	params := c.buildParams(req)
	stream := client.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	var content strings.Builder
	var usage llm.Usage
	hasUsage := false
	chunks := 0

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				content.WriteString(delta)
				chunks++
				if onChunk != nil {
					onChunk(delta)
				}
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			usage = llm.Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
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
		return llm.StreamResult{}, fmt.Errorf("openai stream: %w", err)
	}

	result := llm.StreamResult{
		Content:  content.String(),
		Usage:    usage,
		HasUsage: hasUsage,
	}
	c.metrics.RecordSuccess(ProviderName, time.Since(start), usage)
	return result, nil
}

func (c *Client) selectClient(overrideKey string) (openaisdk.Client, error) {
	key := strings.TrimSpace(overrideKey)
	if key == "" {
		key = strings.TrimSpace(c.cfg.OpenAI.APIKey)
	}
	if key == "" {
		return openaisdk.Client{}, llm.ErrMissingAPIKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	timeout := time.Duration(c.cfg.OpenAI.TimeoutSeconds) * time.Second
	client := openaisdk.NewClient(
		option.WithAPIKey(key),
		option.WithRequestTimeout(timeout),
	)
	c.clients[key] = client
	return client, nil
}

func (c *Client) buildParams(req llm.CompletionRequest) openaisdk.ChatCompletionNewParams {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	for _, entry := range req.History {
		if strings.EqualFold(entry.Role, "assistant") {
			messages = append(messages, openaisdk.AssistantMessage(entry.Content))
			continue
		}
		messages = append(messages, openaisdk.UserMessage(entry.Content))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.OpenAI.MaxTokens
	}

	return openaisdk.ChatCompletionNewParams{
		Model:               openaisdk.ChatModel(c.cfg.OpenAI.Model),
		Messages:            messages,
		MaxCompletionTokens: openaisdk.Int(int64(maxTokens)),
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: openaisdk.Bool(true),
		},
	}
}

var _ llm.Provider = (*Client)(nil)
