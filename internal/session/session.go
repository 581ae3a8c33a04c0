// Package session implements the Session Store (C7): pins a chosen model
// for a client session's lifetime so repeated `auto` requests in the same
// conversation land on the same model.
//
// Grounded on internal/agents/registry.go's mutex+map pattern; the per-session
// rate.Limiter reuses golang.org/x/time/rate the way agents.Registry uses it
// per-agent (see SPEC_FULL.md's DOMAIN STACK note on repurposing it here).
package session

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTTL and DefaultMaxEntries are the store's defaults; both are
// configurable via New.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 10_000
	// PacingRPS and PacingBurst bound how fast one pinned session may issue
	// requests, so a single runaway client can't starve others. Ambient
	// safety concern, not a spec.md invariant.
	PacingRPS   = 5.0
	PacingBurst = 10
)

// Entry is a pinned session (spec.md §3 SessionEntry).
type Entry struct {
	SessionID string
	Model     string
	Tier      string
	FirstSeen time.Time
	LastSeen  time.Time
}

type record struct {
	entry   Entry
	limiter *rate.Limiter
}

// Store is the session pin table.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*record
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New builds a Store. ttl<=0 uses DefaultTTL; maxEntries<=0 uses
// DefaultMaxEntries.
func New(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		entries:    make(map[string]*record),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// GetSessionID returns the first of X-Session-Id, X-Request-Session, or the
// "session" cookie, per spec.md §4.6.
func GetSessionID(h http.Header, cookies []*http.Cookie) string {
	if v := h.Get("X-Session-Id"); v != "" {
		return v
	}
	if v := h.Get("X-Request-Session"); v != "" {
		return v
	}
	for _, c := range cookies {
		if c.Name == "session" && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// SetSession creates or overwrites the pin for id.
func (s *Store) SetSession(id, model, tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	now := s.now()
	rec, exists := s.entries[id]
	if !exists {
		if len(s.entries) >= s.maxEntries {
			s.evictOldestLocked()
		}
		rec = &record{limiter: rate.NewLimiter(rate.Limit(PacingRPS), PacingBurst)}
		s.entries[id] = rec
		rec.entry.FirstSeen = now
	}
	rec.entry.SessionID = id
	rec.entry.Model = model
	rec.entry.Tier = tier
	rec.entry.LastSeen = now
}

// TouchSession refreshes an existing entry's LastSeen, returning false if no
// entry exists for id.
func (s *Store) TouchSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return false
	}
	rec.entry.LastSeen = s.now()
	return true
}

// GetSession returns the pin for id if present and unexpired.
func (s *Store) GetSession(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	if s.now().Sub(rec.entry.LastSeen) > s.ttl {
		delete(s.entries, id)
		return Entry{}, false
	}
	return rec.entry, true
}

// Allow reports whether a request against a pinned session should proceed,
// consuming one token from that session's pacing limiter.
func (s *Store) Allow(id string) bool {
	s.mu.Lock()
	rec, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return true
	}
	return rec.limiter.Allow()
}

// Len reports the number of live (possibly stale, not yet swept) entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweepLocked removes every expired entry. Called with s.mu held.
func (s *Store) sweepLocked() {
	now := s.now()
	for id, rec := range s.entries {
		if now.Sub(rec.entry.LastSeen) > s.ttl {
			delete(s.entries, id)
		}
	}
}

// evictOldestLocked drops the least-recently-seen entry. Called with s.mu
// held, only when at capacity.
func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldestSeen time.Time
	first := true
	for id, rec := range s.entries {
		if first || rec.entry.LastSeen.Before(oldestSeen) {
			oldestID = id
			oldestSeen = rec.entry.LastSeen
			first = false
		}
	}
	if !first {
		delete(s.entries, oldestID)
	}
}
