package quota

import (
	"context"
	"log/slog"
	"math"

	"github.com/duolog/duolog-server/internal/config"
)

const (
	// ReasonVerificationRequired denies unverified identities.
	ReasonVerificationRequired = "verification_required"
	// ReasonLimitReached denies exhausted identities.
	ReasonLimitReached = "limit_reached"
)

// Gate decides whether an identity may start a conversation and tracks
// how many it has completed. Callers supplying their own provider keys
// bypass the gate entirely.
type Gate struct {
	cfg    *config.Config
	store  Store
	logger *slog.Logger
}

// NewGate creates a usage gate over the given store.
func NewGate(cfg *config.Config, store Store, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// CheckLimit returns the admission decision for identityKey.
// hasOwnKeys reports whether the caller supplied provider credentials;
// such callers are never denied.
func (g *Gate) CheckLimit(ctx context.Context, identityKey string, hasOwnKeys bool) Decision {
	if hasOwnKeys {
		return Decision{
			Allowed:    true,
			Used:       0,
			Limit:      math.MaxInt32,
			HasOwnKeys: true,
		}
	}

	record, err := g.store.GetOrCreate(ctx, identityKey, int64(g.cfg.Quota.MaxConversations))
	if err != nil {
		// Store outage: fail open with a conservative limit rather
		// than turning everyone away.
		if g.logger != nil {
			g.logger.Warn("quota_store_unavailable", "err", err, "identity", identityKey)
		}
		return Decision{
			Allowed:       true,
			Used:          0,
			Limit:         g.cfg.Quota.FallbackLimit,
			EmailVerified: true,
			Degraded:      true,
		}
	}

	decision := Decision{
		Used:          int(record.ConversationsUsed),
		Limit:         int(record.MaxConversations),
		EmailVerified: record.EmailVerified,
	}

	if !record.EmailVerified {
		decision.Reason = ReasonVerificationRequired
		return decision
	}
	if record.ConversationsUsed >= record.MaxConversations {
		decision.Reason = ReasonLimitReached
		return decision
	}

	decision.Allowed = true
	return decision
}

// Increment records one completed conversation for identityKey.
// No-op for callers using their own credentials; cancelled and errored
// conversations must not reach this method.
func (g *Gate) Increment(ctx context.Context, identityKey string, hasOwnKeys bool) error {
	if hasOwnKeys {
		return nil
	}
	if err := g.store.Increment(ctx, identityKey); err != nil {
		if g.logger != nil {
			g.logger.Warn("quota_increment_failed", "err", err, "identity", identityKey)
		}
		return err
	}
	return nil
}

// Reset is the administrative counter reset. Verification status and the
// limit stay untouched.
func (g *Gate) Reset(ctx context.Context, identityKey string) error {
	return g.store.Reset(ctx, identityKey)
}

// SetVerified flips the verification flag for identityKey, creating the
// record when absent.
func (g *Gate) SetVerified(ctx context.Context, identityKey string, verified bool) error {
	if _, err := g.store.GetOrCreate(ctx, identityKey, int64(g.cfg.Quota.MaxConversations)); err != nil {
		return err
	}
	return g.store.SetVerified(ctx, identityKey, verified)
}
