package ledger

import (
	"sync"
	"time"

	"github.com/duolog/duolog-server/internal/cache"
	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/llm"
)

// Ledger holds running totals for one conversation.
type Ledger struct {
	ConversationID    string    `json:"conversation_id,omitempty"`
	TotalInputTokens  int64     `json:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens"`
	TotalCostCents    float64   `json:"total_cost_cents"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Store keeps per-conversation cost ledgers plus a process-wide session
// aggregate. Conversation entries are evicted after the configured TTL
// of inactivity; the session aggregate lives for the process lifetime.
type Store struct {
	mu      sync.Mutex
	entries *cache.TTLCache[string, *Ledger]
	session Ledger
}

// NewStore creates a ledger store from config.
func NewStore(cfg config.LedgerConfig) *Store {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	return &Store{
		entries: cache.NewTTLCache[string, *Ledger](cfg.MaxConversations, ttl),
	}
}

// Record adds one token usage record to a conversation's ledger and to
// the session aggregate. Records are additive only.
func (s *Store) Record(conversationID string, model string, usage llm.Usage) {
	costCents := ComputeCostCents(usage, ResolvePricing(model))

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(conversationID)
	if !ok {
		entry = &Ledger{ConversationID: conversationID}
	}
	entry.TotalInputTokens += int64(usage.InputTokens)
	entry.TotalOutputTokens += int64(usage.OutputTokens)
	entry.TotalCostCents += costCents
	entry.UpdatedAt = time.Now()
	s.entries.Set(conversationID, entry)

	s.session.TotalInputTokens += int64(usage.InputTokens)
	s.session.TotalOutputTokens += int64(usage.OutputTokens)
	s.session.TotalCostCents += costCents
	s.session.UpdatedAt = entry.UpdatedAt
}

// Conversation returns the ledger for one conversation.
func (s *Store) Conversation(conversationID string) (Ledger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries.Get(conversationID)
	if !ok {
		return Ledger{}, false
	}
	return *entry, true
}

// SessionTotals returns the aggregate across all conversations seen by
// this process.
func (s *Store) SessionTotals() Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}
