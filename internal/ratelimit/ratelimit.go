// Package ratelimit implements the Rate-Limit Map (C8): per-model cooldown
// timestamps used to deprioritize recently-throttled models in the fallback
// chain.
//
// Grounded on internal/agents/registry.go's sync.RWMutex-guarded map
// pattern.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultCooldown is the default mark lifetime (spec.md §3).
const DefaultCooldown = 60 * time.Second

// Map tracks which model ids are currently rate-limited.
type Map struct {
	mu       sync.RWMutex
	marks    map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// New builds a Map with the given cooldown. A zero cooldown uses
// DefaultCooldown.
func New(cooldown time.Duration) *Map {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Map{
		marks:    make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// MarkRateLimited records that modelID was just rate-limited.
func (m *Map) MarkRateLimited(modelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[modelID] = m.now()
}

// IsRateLimited reports whether modelID has an unexpired mark, lazily
// evicting it if expired.
func (m *Map) IsRateLimited(modelID string) bool {
	m.mu.RLock()
	hitAt, ok := m.marks[modelID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if m.now().Sub(hitAt) >= m.cooldown {
		m.mu.Lock()
		if hitAt2, still := m.marks[modelID]; still && hitAt2.Equal(hitAt) {
			delete(m.marks, modelID)
		}
		m.mu.Unlock()
		return false
	}
	return true
}

// HitAt returns the timestamp of modelID's most recent mark, or the zero
// value if none exists. Prioritize does not consult it: its limited
// partition keeps the input order.
func (m *Map) HitAt(modelID string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks[modelID]
}

// Prioritize partitions list into {notLimited, limited}, preserving order
// within each partition (spec.md §4.7).
func (m *Map) Prioritize(list []string) (notLimited, limited []string) {
	for _, id := range list {
		if m.IsRateLimited(id) {
			limited = append(limited, id)
		} else {
			notLimited = append(notLimited, id)
		}
	}
	return notLimited, limited
}
