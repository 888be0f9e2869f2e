package ratelimit

import (
	"context"
	"time"
)

// windowSeconds is the fixed rate-limit window length.
const windowSeconds = 60

// Store counts requests per identity within the current fixed window.
// Implementations must be safe for concurrent use.
type Store interface {
	// Incr bumps the counter for identity in the current window and
	// returns the new count.
	Incr(ctx context.Context, identity string) (int64, error)

	// Ping checks backend availability.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close()
}

// currentWindow returns the active window index and its end as unix time.
func currentWindow(now time.Time) (int64, int64) {
	window := now.Unix() / windowSeconds
	resetAt := (window + 1) * windowSeconds
	return window, resetAt
}

// WindowReset returns the unix time at which the current window ends.
func WindowReset(now time.Time) int64 {
	_, resetAt := currentWindow(now)
	return resetAt
}
