// Package streamclient parses a DuoLog collaboration event stream and
// rebuilds per-round message state for a client UI.
package streamclient

// Event is one decoded frame of the collaboration stream.
type Event struct {
	Type             string      `json:"type"`
	Round            int         `json:"round,omitempty"`
	Model            string      `json:"model,omitempty"`
	InputPrompt      string      `json:"inputPrompt,omitempty"`
	Content          string      `json:"content,omitempty"`
	IsFinalSynthesis bool        `json:"isFinalSynthesis,omitempty"`
	TokenUsage       *TokenUsage `json:"tokenUsage,omitempty"`
	Warning          string      `json:"warning,omitempty"`
	Error            string      `json:"error,omitempty"`
}

// TokenUsage is the payload of a token_update event.
type TokenUsage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// Event type values on the wire.
const (
	TypeRoundStart           = "round_start"
	TypeContentChunk         = "content_chunk"
	TypeTokenUpdate          = "token_update"
	TypeRoundComplete        = "round_complete"
	TypeConversationComplete = "conversation_complete"
	TypeWarning              = "warning"
	TypeError                = "error"
)
