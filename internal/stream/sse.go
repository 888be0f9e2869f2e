package stream

import (
	"fmt"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/duolog/duolog-server/internal/collab"
)

// SSESink frames collaboration events as server-sent events. Writes are
// fire-and-forget: once the sink is closed or the client is gone, events
// are dropped silently. Close is idempotent.
type SSESink struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewSSESink prepares the response for event streaming and writes the
// stream headers immediately.
func NewSSESink(w http.ResponseWriter) *SSESink {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	return &SSESink{writer: w, flusher: flusher}
}

// Write frames one event as `data: <json>\n\n` and flushes it. Events are
// delivered in Write call order; a write failure closes the sink.
func (s *SSESink) Write(event collab.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		s.closed = true
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// Close marks the sink closed. Subsequent writes are dropped.
func (s *SSESink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

var _ collab.Sink = (*SSESink)(nil)
