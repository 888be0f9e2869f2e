package stream

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/duolog/duolog-server/internal/collab"
)

func TestSSESinkFraming(t *testing.T) {
	recorder := httptest.NewRecorder()
	sink := NewSSESink(recorder)

	if got := recorder.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", got)
	}

	sink.Write(collab.Event{Type: collab.EventRoundStart, Round: 1, Model: "alpha"})
	sink.Write(collab.Event{Type: collab.EventConversationComplete})

	body := recorder.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %q", len(frames), body)
	}
	for _, frame := range frames {
		if !strings.HasPrefix(frame, "data: {") {
			t.Fatalf("unexpected frame format: %q", frame)
		}
	}
	if !strings.Contains(frames[0], `"round_start"`) {
		t.Fatalf("expected round_start first, got %q", frames[0])
	}
	if !strings.Contains(frames[1], `"conversation_complete"`) {
		t.Fatalf("expected conversation_complete second, got %q", frames[1])
	}
}

func TestSSESinkDropsWritesAfterClose(t *testing.T) {
	recorder := httptest.NewRecorder()
	sink := NewSSESink(recorder)

	sink.Write(collab.Event{Type: collab.EventRoundStart, Round: 1, Model: "alpha"})
	sink.Close()
	sink.Close()
	sink.Write(collab.Event{Type: collab.EventError, Error: "dropped"})

	body := recorder.Body.String()
	if strings.Contains(body, "dropped") {
		t.Fatalf("write after close must be dropped: %q", body)
	}
}

func TestSSESinkConcurrentWrites(t *testing.T) {
	recorder := httptest.NewRecorder()
	sink := NewSSESink(recorder)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Write(collab.Event{Type: collab.EventContentChunk, Round: 1, Model: "alpha", Content: "x"})
		}()
	}
	wg.Wait()

	frames := strings.Count(recorder.Body.String(), "data: ")
	if frames != 20 {
		t.Fatalf("expected 20 intact frames, got %d", frames)
	}
}
