package collab

import "github.com/duolog/duolog-server/internal/llm"

// EventType identifies a stream event frame.
type EventType string

const (
	EventRoundStart           EventType = "round_start"
	EventContentChunk         EventType = "content_chunk"
	EventTokenUpdate          EventType = "token_update"
	EventRoundComplete        EventType = "round_complete"
	EventConversationComplete EventType = "conversation_complete"
	EventWarning              EventType = "warning"
	EventError                EventType = "error"
)

// TokenUsage is the token accounting payload of a token_update event.
type TokenUsage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// Event is one frame of the collaboration stream.
type Event struct {
	Type             EventType   `json:"type"`
	Round            int         `json:"round,omitempty"`
	Model            string      `json:"model,omitempty"`
	InputPrompt      string      `json:"inputPrompt,omitempty"`
	Content          string      `json:"content,omitempty"`
	IsFinalSynthesis bool        `json:"isFinalSynthesis,omitempty"`
	TokenUsage       *TokenUsage `json:"tokenUsage,omitempty"`
	Warning          string      `json:"warning,omitempty"`
	Error            string      `json:"error,omitempty"`
}

func roundStartEvent(round int, model string, inputPrompt string) Event {
	return Event{Type: EventRoundStart, Round: round, Model: model, InputPrompt: inputPrompt}
}

func contentChunkEvent(round int, model string, content string, isFinal bool) Event {
	return Event{Type: EventContentChunk, Round: round, Model: model, Content: content, IsFinalSynthesis: isFinal}
}

func tokenUpdateEvent(model string, usage llm.Usage) Event {
	return Event{
		Type: EventTokenUpdate,
		TokenUsage: &TokenUsage{
			Model:        model,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
		},
	}
}

func roundCompleteEvent(round int, model string, isFinal bool) Event {
	return Event{Type: EventRoundComplete, Round: round, Model: model, IsFinalSynthesis: isFinal}
}

func conversationCompleteEvent() Event {
	return Event{Type: EventConversationComplete}
}

func warningEvent(message string) Event {
	return Event{Type: EventWarning, Warning: message}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Error: message}
}

// Sink receives orchestrator events. Write is fire-and-forget: a sink
// whose consumer has gone away drops events instead of returning errors.
// Close is idempotent.
type Sink interface {
	Write(event Event)
	Close()
}
