package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/duolog/duolog-server/internal/llm"
)

type providerStats struct {
	calls          int64
	errors         int64
	inputTokens    int64
	outputTokens   int64
	durationMs     int64
	cancellations  int64
	streamedChunks int64
}

// Store keeps process-wide provider call statistics.
type Store struct {
	mu        sync.RWMutex
	providers map[string]*providerStats
}

// NewStore creates a statistics store.
func NewStore() *Store {
	return &Store{providers: make(map[string]*providerStats)}
}

func (s *Store) stats(provider string) *providerStats {
	s.mu.RLock()
	stats, ok := s.providers[provider]
	s.mu.RUnlock()
	if ok {
		return stats
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if stats, ok = s.providers[provider]; ok {
		return stats
	}
	stats = &providerStats{}
	s.providers[provider] = stats
	return stats
}

// RecordSuccess records a completed provider call.
func (s *Store) RecordSuccess(provider string, duration time.Duration, usage llm.Usage) {
	stats := s.stats(provider)
	atomic.AddInt64(&stats.calls, 1)
	atomic.AddInt64(&stats.inputTokens, int64(usage.InputTokens))
	atomic.AddInt64(&stats.outputTokens, int64(usage.OutputTokens))
	atomic.AddInt64(&stats.durationMs, duration.Milliseconds())
}

// RecordError records a failed provider call.
func (s *Store) RecordError(provider string, duration time.Duration) {
	stats := s.stats(provider)
	atomic.AddInt64(&stats.calls, 1)
	atomic.AddInt64(&stats.errors, 1)
	atomic.AddInt64(&stats.durationMs, duration.Milliseconds())
}

// RecordCancellation records a caller-cancelled provider call.
func (s *Store) RecordCancellation(provider string) {
	stats := s.stats(provider)
	atomic.AddInt64(&stats.cancellations, 1)
}

// RecordChunks adds streamed chunk counts for a provider.
func (s *Store) RecordChunks(provider string, count int) {
	if count <= 0 {
		return
	}
	stats := s.stats(provider)
	atomic.AddInt64(&stats.streamedChunks, int64(count))
}

// UsageTotals returns accumulated token usage for one provider.
func (s *Store) UsageTotals(provider string) llm.Usage {
	stats := s.stats(provider)
	input := atomic.LoadInt64(&stats.inputTokens)
	output := atomic.LoadInt64(&stats.outputTokens)
	return llm.Usage{
		InputTokens:  int(input),
		OutputTokens: int(output),
		TotalTokens:  int(input + output),
	}
}

// Snapshot returns per-provider statistics keyed by provider name.
func (s *Store) Snapshot() map[string]map[string]float64 {
	s.mu.RLock()
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	s.mu.RUnlock()

	result := make(map[string]map[string]float64, len(names))
	for _, name := range names {
		stats := s.stats(name)
		calls := atomic.LoadInt64(&stats.calls)
		durationMs := atomic.LoadInt64(&stats.durationMs)
		avgDuration := 0.0
		if calls > 0 {
			avgDuration = float64(durationMs) / float64(calls)
		}
		input := atomic.LoadInt64(&stats.inputTokens)
		output := atomic.LoadInt64(&stats.outputTokens)
		result[name] = map[string]float64{
			"total_calls":         float64(calls),
			"total_errors":        float64(atomic.LoadInt64(&stats.errors)),
			"total_cancellations": float64(atomic.LoadInt64(&stats.cancellations)),
			"total_input_tokens":  float64(input),
			"total_output_tokens": float64(output),
			"total_tokens":        float64(input + output),
			"streamed_chunks":     float64(atomic.LoadInt64(&stats.streamedChunks)),
			"total_duration_ms":   float64(durationMs),
			"avg_duration_ms":     avgDuration,
		}
	}
	return result
}
