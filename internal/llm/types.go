package llm

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned when neither a caller-supplied key nor a
// process-wide key is available for a provider.
var ErrMissingAPIKey = errors.New("missing provider api key")

// DeliveryMode declares how a provider hands content to the chunk callback.
type DeliveryMode int

const (
	// ModeIncremental means each chunk is a new suffix to append.
	ModeIncremental DeliveryMode = iota
	// ModeCumulative means each chunk replaces everything seen so far.
	ModeCumulative
)

// HistoryEntry is one prior exchange handed to a provider.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage holds token usage for a single completed invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// CompletionRequest is a provider-neutral streaming completion request.
type CompletionRequest struct {
	Prompt    string
	System    string
	History   []HistoryEntry
	APIKey    string // caller-supplied key; empty means use the process key
	MaxTokens int
}

// StreamResult is the accumulated outcome of a streaming completion.
// Content equals the concatenation of every chunk delivered (incremental
// mode) or the final chunk (cumulative mode).
type StreamResult struct {
	Content  string
	Usage    Usage
	HasUsage bool
}

// Provider is a streaming chat model backend.
// Implementations must deliver chunks in arrival order, return content
// consistent with their declared Mode, fail without a usable credential,
// and stop delivering chunks promptly once ctx is cancelled.
type Provider interface {
	// Name is the short speaker name used in stream events.
	Name() string

	// ModelID is the configured model identifier, used for cost lookup.
	ModelID() string

	// Mode declares the chunk delivery mode.
	Mode() DeliveryMode

	// StreamCompletion runs one completion, invoking onChunk per piece.
	StreamCompletion(ctx context.Context, req CompletionRequest, onChunk func(string)) (StreamResult, error)
}
