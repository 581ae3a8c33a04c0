// Package selector implements the routing brain's model-pick half (C4):
// tier (+ an agentic hint) to a primary model plus an ordered fallback list.
//
// Grounded on internal/llm/cloud_router.go's prefix-based selectProvider and
// internal/agents/registry.go's tier tables, generalized to spec.md's
// {primary, fallback[]} TierConfig shape with tier-widening.
package selector

import (
	"fmt"

	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/registry"
)

// TierConfig is one tier's resolution table: a primary model id and an
// ordered list of fallbacks.
type TierConfig struct {
	Primary  string
	Fallback []string
}

// Tables holds the two parallel tier tables spec.md §3 describes: the
// default table and the one consulted for agentic requests.
type Tables struct {
	Tiers        map[classifier.Tier]TierConfig
	AgenticTiers map[classifier.Tier]TierConfig
}

// Validate checks the primary/fallback-present-in-registry invariant for
// every tier in both tables.
func (t Tables) Validate(reg *registry.Registry) error {
	for _, table := range []map[classifier.Tier]TierConfig{t.Tiers, t.AgenticTiers} {
		for tier, cfg := range table {
			ids := append([]string{cfg.Primary}, cfg.Fallback...)
			if err := reg.MustHave(ids...); err != nil {
				return fmt.Errorf("selector: tier %s: %w", tier, err)
			}
		}
	}
	return nil
}

// Reachable reports whether a model id currently has usable credentials.
// The selector depends on this instead of the key resolver directly so it
// can be unit-tested with a trivial stub.
type Reachable func(modelID string) bool

// Selector resolves a tier to a model, widening to adjacent tiers when the
// chosen tier has no model reachable given the current key configuration.
type Selector struct {
	tables Tables
}

// New builds a Selector over a validated Tables value.
func New(tables Tables) *Selector {
	return &Selector{tables: tables}
}

// widenOrder is the order tiers are tried when the requested tier is empty:
// spec.md says "widens to the next tier up, then down, in that order".
func widenOrder(t classifier.Tier) []classifier.Tier {
	order := []classifier.Tier{t}
	// up
	for tier := t + 1; tier <= classifier.Reasoning; tier++ {
		order = append(order, tier)
	}
	// down
	for tier := t - 1; tier >= classifier.Simple; tier-- {
		order = append(order, tier)
	}
	return order
}

// Select returns the primary model and its ordered fallback list for tier,
// consulting the agentic table when agentic is true. The returned list is
// never empty unless the entire table (across every tier) has no reachable
// model, in which case ok is false.
func (s *Selector) Select(tier classifier.Tier, agentic bool, reachable Reachable) (primary string, fallback []string, ok bool) {
	table := s.tables.Tiers
	if agentic {
		table = s.tables.AgenticTiers
	}

	for _, candidate := range widenOrder(tier) {
		cfg, present := table[candidate]
		if !present {
			continue
		}
		ids := append([]string{cfg.Primary}, cfg.Fallback...)
		var reachableIDs []string
		for _, id := range ids {
			if reachable(id) {
				reachableIDs = append(reachableIDs, id)
			}
		}
		if len(reachableIDs) == 0 {
			continue
		}
		return reachableIDs[0], reachableIDs[1:], true
	}
	return "", nil, false
}
