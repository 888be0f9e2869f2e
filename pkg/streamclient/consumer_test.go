package streamclient

import (
	"strings"
	"testing"
)

func TestConsumerIncrementalChunks(t *testing.T) {
	consumer := NewConsumer()
	generation := consumer.Begin()

	consumer.Apply(generation, Event{Type: TypeRoundStart, Round: 1, Model: "alpha"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "Hel"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "lo "})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "world"})
	consumer.Apply(generation, Event{Type: TypeRoundComplete, Round: 1, Model: "alpha"})

	messages := consumer.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].Content != "Hello world" {
		t.Fatalf("unexpected content: %q", messages[0].Content)
	}
	if !messages[0].Complete {
		t.Fatalf("expected message marked complete")
	}
}

func TestConsumerCumulativeChunks(t *testing.T) {
	consumer := NewConsumer()
	generation := consumer.Begin()

	consumer.Apply(generation, Event{Type: TypeRoundStart, Round: 1, Model: "beta"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "beta", Content: "Hello"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "beta", Content: "Hello world"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "beta", Content: "Hello world!"})

	messages := consumer.Messages()
	if messages[0].Content != "Hello world!" {
		t.Fatalf("cumulative chunks must replace, got %q", messages[0].Content)
	}
}

func TestConsumerMixedModesPerMessage(t *testing.T) {
	consumer := NewConsumer()
	generation := consumer.Begin()

	// round 1 cumulative, round 2 incremental, detected independently
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "beta", Content: "A"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "beta", Content: "AB"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 2, Model: "alpha", Content: "x"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 2, Model: "alpha", Content: "y"})

	messages := consumer.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "AB" {
		t.Fatalf("unexpected cumulative content: %q", messages[0].Content)
	}
	if messages[1].Content != "xy" {
		t.Fatalf("unexpected incremental content: %q", messages[1].Content)
	}
}

func TestConsumerDuplicateRoundStart(t *testing.T) {
	consumer := NewConsumer()
	generation := consumer.Begin()

	consumer.Apply(generation, Event{Type: TypeRoundStart, Round: 1, Model: "alpha"})
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "kept"})
	consumer.Apply(generation, Event{Type: TypeRoundStart, Round: 1, Model: "alpha"})

	messages := consumer.Messages()
	if len(messages) != 1 {
		t.Fatalf("duplicate round_start must not add a message, got %d", len(messages))
	}
	if messages[0].Content != "kept" {
		t.Fatalf("duplicate round_start must not reset content, got %q", messages[0].Content)
	}
}

func TestConsumerStaleGenerationSuppressed(t *testing.T) {
	consumer := NewConsumer()
	stale := consumer.Begin()
	consumer.Apply(stale, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "old"})

	fresh := consumer.Begin()
	consumer.Apply(stale, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "ghost"})
	consumer.Apply(fresh, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "new"})

	messages := consumer.Messages()
	if len(messages) != 1 || messages[0].Content != "new" {
		t.Fatalf("stale events must be suppressed, got %+v", messages)
	}
}

func TestConsumerStop(t *testing.T) {
	consumer := NewConsumer()
	generation := consumer.Begin()

	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: "before"})
	consumer.Stop()
	consumer.Apply(generation, Event{Type: TypeContentChunk, Round: 1, Model: "alpha", Content: " after"})

	if got := consumer.Messages()[0].Content; got != "before" {
		t.Fatalf("events after stop must be ignored, got %q", got)
	}
}

func TestConsumerReadsFramedStream(t *testing.T) {
	raw := "data: {\"type\":\"round_start\",\"round\":1,\"model\":\"alpha\"}\n" +
		"\n" +
		"data: {\"type\":\"content_chunk\",\"round\":1,\"model\":\"alpha\",\"content\":\"hi\"}\n" +
		"\n" +
		"not a frame\n" +
		"data: {\"type\":\"token_update\",\"tokenUsage\":{\"model\":\"model-a\",\"inputTokens\":3,\"outputTokens\":7}}\n" +
		"\n" +
		"data: {\"type\":\"conversation_complete\"}\n\n"

	consumer := NewConsumer()
	generation := consumer.Begin()
	if err := consumer.Consume(generation, strings.NewReader(raw)); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	if !consumer.Complete() {
		t.Fatalf("expected completed conversation")
	}
	usage := consumer.Usage()
	if len(usage) != 1 || usage[0].OutputTokens != 7 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if got := consumer.Messages()[0].Content; got != "hi" {
		t.Fatalf("unexpected content: %q", got)
	}
}
