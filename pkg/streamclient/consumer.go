package streamclient

import (
	"io"
	"strings"
	"sync"
)

// Message is the reconstructed content of one round for one model.
type Message struct {
	Round            int
	Model            string
	Content          string
	IsFinalSynthesis bool
	Complete         bool
}

type messageKey struct {
	round int
	model string
}

// Consumer replays stream events into local message state.
//
// Chunk accumulation is detected per message: a chunk that extends the
// content seen so far (string prefix) replaces it, anything else is
// appended. Duplicate round_start events are no-ops, and events carrying
// a stale generation are ignored after Stop or Reset.
type Consumer struct {
	mu         sync.Mutex
	generation uint64
	active     bool
	order      []messageKey
	messages   map[messageKey]*Message
	usage      []TokenUsage
	warnings   []string
	complete   bool
	err        string
}

// NewConsumer creates an idle consumer. Call Begin before applying events.
func NewConsumer() *Consumer {
	return &Consumer{messages: make(map[messageKey]*Message)}
}

// Begin starts a new conversation generation, clearing previous state,
// and returns the generation token events must carry to be applied.
func (c *Consumer) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.active = true
	c.order = nil
	c.messages = make(map[messageKey]*Message)
	c.usage = nil
	c.warnings = nil
	c.complete = false
	c.err = ""
	return c.generation
}

// Stop suppresses all further events until the next Begin.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

// Apply replays one event into the consumer state. Events from a stale
// generation, or arriving after Stop, are ignored.
func (c *Consumer) Apply(generation uint64, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || generation != c.generation {
		return
	}

	switch event.Type {
	case TypeRoundStart:
		key := messageKey{round: event.Round, model: event.Model}
		if _, seen := c.messages[key]; seen {
			return
		}
		c.messages[key] = &Message{Round: event.Round, Model: event.Model}
		c.order = append(c.order, key)

	case TypeContentChunk:
		message := c.ensureMessage(event)
		if strings.HasPrefix(event.Content, message.Content) {
			message.Content = event.Content
		} else {
			message.Content += event.Content
		}
		if event.IsFinalSynthesis {
			message.IsFinalSynthesis = true
		}

	case TypeRoundComplete:
		message := c.ensureMessage(event)
		message.Complete = true
		if event.IsFinalSynthesis {
			message.IsFinalSynthesis = true
		}

	case TypeTokenUpdate:
		if event.TokenUsage != nil {
			c.usage = append(c.usage, *event.TokenUsage)
		}

	case TypeWarning:
		c.warnings = append(c.warnings, event.Warning)

	case TypeConversationComplete:
		c.complete = true
		c.active = false

	case TypeError:
		c.err = event.Error
		c.active = false
	}
}

// Consume reads an entire stream from r, applying every event under the
// given generation.
func (c *Consumer) Consume(generation uint64, r io.Reader) error {
	return ReadEvents(r, func(event Event) {
		c.Apply(generation, event)
	})
}

// Messages returns the reconstructed messages in round order.
func (c *Consumer) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.messages[key])
	}
	return out
}

// Usage returns the token_update payloads seen so far.
func (c *Consumer) Usage() []TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TokenUsage(nil), c.usage...)
}

// Warnings returns the warning messages seen so far.
func (c *Consumer) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Complete reports whether conversation_complete was received.
func (c *Consumer) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complete
}

// Err returns the fatal stream error message, if one was received.
func (c *Consumer) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Consumer) ensureMessage(event Event) *Message {
	key := messageKey{round: event.Round, model: event.Model}
	message, ok := c.messages[key]
	if !ok {
		message = &Message{Round: event.Round, Model: event.Model}
		c.messages[key] = message
		c.order = append(c.order, key)
	}
	return message
}
