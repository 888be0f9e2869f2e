package quota

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Signals are the raw identity inputs extracted from a request.
type Signals struct {
	Email       string
	IP          string
	Fingerprint string
	ClientID    string
}

// Resolver maps request signals to an opaque identity key.
// Pluggable so the composite-hash heuristic can be replaced by
// authenticated sessions later.
type Resolver interface {
	Resolve(signals Signals) string
}

// DefaultResolver implements the email-first resolution order:
// verified email address, then a hash of ip+fingerprint+client id, then
// a time-derived key. The time fallback means every request looks new;
// admission still hinges on email verification, so it cannot mint quota.
type DefaultResolver struct {
	now func() time.Time
}

// NewResolver creates the default identity resolver.
func NewResolver() *DefaultResolver {
	return &DefaultResolver{now: time.Now}
}

// Resolve returns the identity key for the given signals.
func (r *DefaultResolver) Resolve(signals Signals) string {
	email := strings.ToLower(strings.TrimSpace(signals.Email))
	if email != "" {
		return "email:" + email
	}

	ip := strings.TrimSpace(signals.IP)
	fingerprint := strings.TrimSpace(signals.Fingerprint)
	clientID := strings.TrimSpace(signals.ClientID)
	if ip != "" || fingerprint != "" || clientID != "" {
		sum := sha256.Sum256([]byte(ip + "|" + fingerprint + "|" + clientID))
		return "anon:" + hex.EncodeToString(sum[:])[:32]
	}

	return fmt.Sprintf("fallback:%d", r.now().UnixNano())
}

var _ Resolver = (*DefaultResolver)(nil)
