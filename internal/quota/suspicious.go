package quota

import (
	"sort"
	"sync"
	"time"

	"github.com/duolog/duolog-server/internal/cache"
)

const suspiciousTrackerSize = 10000

// SuspiciousFlag reports several distinct email identities sharing one
// fingerprint or IP inside the observation window. Advisory only: it is
// surfaced to the admin API and never blocks anything.
type SuspiciousFlag struct {
	Signal    string    `json:"signal"`
	Emails    []string  `json:"emails"`
	FirstSeen time.Time `json:"first_seen"`
}

type signalEntry struct {
	emails    map[string]struct{}
	firstSeen time.Time
}

// SuspiciousTracker observes (signal, email) pairs within a sliding
// window and flags signals tied to more than one email.
type SuspiciousTracker struct {
	mu      sync.Mutex
	entries *cache.TTLCache[string, *signalEntry]
	flagged map[string]struct{}
}

// NewSuspiciousTracker creates a tracker with the given window.
func NewSuspiciousTracker(window time.Duration) *SuspiciousTracker {
	return &SuspiciousTracker{
		entries: cache.NewTTLCache[string, *signalEntry](suspiciousTrackerSize, window),
		flagged: make(map[string]struct{}),
	}
}

// Observe records an email seen under a fingerprint and an IP.
func (t *SuspiciousTracker) Observe(fingerprint string, ip string, email string) {
	if email == "" {
		return
	}
	if fingerprint != "" {
		t.observeSignal("fp:"+fingerprint, email)
	}
	if ip != "" {
		t.observeSignal("ip:"+ip, email)
	}
}

func (t *SuspiciousTracker) observeSignal(signal string, email string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries.Get(signal)
	if !ok {
		entry = &signalEntry{
			emails:    make(map[string]struct{}),
			firstSeen: time.Now(),
		}
	}
	entry.emails[email] = struct{}{}
	t.entries.Set(signal, entry)

	if len(entry.emails) >= 2 {
		t.flagged[signal] = struct{}{}
	}
}

// Flags returns the signals currently tied to multiple emails. Signals
// whose window has lapsed are dropped from the flagged set.
func (t *SuspiciousTracker) Flags() []SuspiciousFlag {
	t.mu.Lock()
	defer t.mu.Unlock()

	flags := make([]SuspiciousFlag, 0, len(t.flagged))
	for signal := range t.flagged {
		entry, ok := t.entries.Get(signal)
		if !ok || len(entry.emails) < 2 {
			delete(t.flagged, signal)
			continue
		}
		emails := make([]string, 0, len(entry.emails))
		for email := range entry.emails {
			emails = append(emails, email)
		}
		sort.Strings(emails)
		flags = append(flags, SuspiciousFlag{
			Signal:    signal,
			Emails:    emails,
			FirstSeen: entry.firstSeen,
		})
	}

	sort.Slice(flags, func(i, j int) bool { return flags[i].Signal < flags[j].Signal })
	return flags
}
