package quota

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/duolog/duolog-server/internal/config"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*UsageRecord
	failAll bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*UsageRecord)}
}

func (m *memoryStore) GetOrCreate(_ context.Context, identityKey string, defaultLimit int64) (*UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errors.New("store down")
	}
	record, ok := m.records[identityKey]
	if !ok {
		record = &UsageRecord{
			IdentityKey:      identityKey,
			MaxConversations: defaultLimit,
		}
		m.records[identityKey] = record
	}
	copied := *record
	return &copied, nil
}

func (m *memoryStore) Increment(_ context.Context, identityKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("store down")
	}
	record, ok := m.records[identityKey]
	if !ok {
		return ErrRecordNotFound
	}
	record.ConversationsUsed++
	return nil
}

func (m *memoryStore) Reset(_ context.Context, identityKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[identityKey]
	if !ok {
		return ErrRecordNotFound
	}
	record.ConversationsUsed = 0
	return nil
}

func (m *memoryStore) SetVerified(_ context.Context, identityKey string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[identityKey]
	if !ok {
		return ErrRecordNotFound
	}
	record.EmailVerified = verified
	return nil
}

func (m *memoryStore) Close() {}

var _ Store = (*memoryStore)(nil)

func newTestGate(store Store) *Gate {
	cfg := &config.Config{Quota: config.QuotaConfig{MaxConversations: 3, FallbackLimit: 1}}
	return NewGate(cfg, store, nil)
}

func TestCheckLimitOwnKeysBypass(t *testing.T) {
	gate := newTestGate(newMemoryStore())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		decision := gate.CheckLimit(ctx, "email:a@example.com", true)
		if !decision.Allowed {
			t.Fatalf("own-keys caller must never be denied")
		}
		if !decision.HasOwnKeys {
			t.Fatalf("expected own-keys flag")
		}
	}
}

func TestCheckLimitUnverifiedDenied(t *testing.T) {
	gate := newTestGate(newMemoryStore())
	decision := gate.CheckLimit(context.Background(), "anon:abc", false)
	if decision.Allowed {
		t.Fatalf("unverified identity must be denied")
	}
	if decision.Reason != ReasonVerificationRequired {
		t.Fatalf("expected verification_required, got %q", decision.Reason)
	}
}

func TestCheckLimitVerifiedWithinQuota(t *testing.T) {
	store := newMemoryStore()
	gate := newTestGate(store)
	ctx := context.Background()

	if err := gate.SetVerified(ctx, "email:a@example.com", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}

	decision := gate.CheckLimit(ctx, "email:a@example.com", false)
	if !decision.Allowed {
		t.Fatalf("verified identity within quota must be allowed: %+v", decision)
	}
	if decision.Used != 0 || decision.Limit != 3 {
		t.Fatalf("unexpected used/limit: %+v", decision)
	}
}

func TestCheckLimitExhaustedDenied(t *testing.T) {
	store := newMemoryStore()
	gate := newTestGate(store)
	ctx := context.Background()

	if err := gate.SetVerified(ctx, "email:a@example.com", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := gate.Increment(ctx, "email:a@example.com", false); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	decision := gate.CheckLimit(ctx, "email:a@example.com", false)
	if decision.Allowed {
		t.Fatalf("exhausted identity must be denied")
	}
	if decision.Reason != ReasonLimitReached {
		t.Fatalf("expected limit_reached, got %q", decision.Reason)
	}
	if decision.Used != 3 || decision.Limit != 3 {
		t.Fatalf("unexpected used/limit: %+v", decision)
	}
}

func TestIncrementOwnKeysNoOp(t *testing.T) {
	store := newMemoryStore()
	gate := newTestGate(store)
	ctx := context.Background()

	if err := gate.SetVerified(ctx, "email:a@example.com", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	if err := gate.Increment(ctx, "email:a@example.com", true); err != nil {
		t.Fatalf("own-keys increment must be a no-op: %v", err)
	}

	decision := gate.CheckLimit(ctx, "email:a@example.com", false)
	if decision.Used != 0 {
		t.Fatalf("expected counter untouched, got %d", decision.Used)
	}
}

func TestIncrementConcurrent(t *testing.T) {
	store := newMemoryStore()
	gate := newTestGate(store)
	ctx := context.Background()

	if err := gate.SetVerified(ctx, "email:a@example.com", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = gate.Increment(ctx, "email:a@example.com", false)
		}()
	}
	wg.Wait()

	decision := gate.CheckLimit(ctx, "email:a@example.com", false)
	if decision.Used != workers {
		t.Fatalf("lost updates: expected %d, got %d", workers, decision.Used)
	}
}

func TestCheckLimitFailsOpenOnStoreError(t *testing.T) {
	store := newMemoryStore()
	store.failAll = true
	gate := newTestGate(store)

	decision := gate.CheckLimit(context.Background(), "email:a@example.com", false)
	if !decision.Allowed {
		t.Fatalf("store outage must fail open")
	}
	if !decision.Degraded {
		t.Fatalf("expected degraded decision")
	}
	if decision.Limit != 1 {
		t.Fatalf("expected conservative fallback limit, got %d", decision.Limit)
	}
}

func TestResetKeepsVerification(t *testing.T) {
	store := newMemoryStore()
	gate := newTestGate(store)
	ctx := context.Background()

	if err := gate.SetVerified(ctx, "email:a@example.com", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	for i := 0; i < 3; i++ {
		_ = gate.Increment(ctx, "email:a@example.com", false)
	}
	if err := gate.Reset(ctx, "email:a@example.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	decision := gate.CheckLimit(ctx, "email:a@example.com", false)
	if !decision.Allowed {
		t.Fatalf("reset identity must be allowed again: %+v", decision)
	}
	if decision.Used != 0 {
		t.Fatalf("expected zeroed counter, got %d", decision.Used)
	}
	if !decision.EmailVerified {
		t.Fatalf("reset must not touch verification")
	}
}
