package proxy

import (
	"fmt"

	"github.com/outpost-run/tiermesh/internal/chatproto"
	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/registry"
)

// RoutingDecision is produced per non-pinned request (spec.md §3).
type RoutingDecision struct {
	Tier         classifier.Tier
	Model        string
	CostEstimate float64
	BaselineCost float64
	Savings      float64
	Reasoning    string
	Notes        []string
	Agentic      bool
}

// NewRoutingDecision builds a decision, computing Savings from CostEstimate
// and BaselineCost (spec.md §3: savings = (baseline - cost)/baseline,
// invariant 12: savings ∈ [0,1], costEstimate ≤ baselineCost).
func NewRoutingDecision(tier classifier.Tier, model string, costEstimate, baselineCost float64, reasoning string, agentic bool) RoutingDecision {
	savings := 0.0
	if baselineCost > 0 {
		savings = (baselineCost - costEstimate) / baselineCost
		if savings < 0 {
			savings = 0
		}
		if savings > 1 {
			savings = 1
		}
	}
	return RoutingDecision{
		Tier: tier, Model: model,
		CostEstimate: costEstimate, BaselineCost: baselineCost,
		Savings: savings, Reasoning: reasoning, Agentic: agentic,
	}
}

// isAgentic implements the Open Questions conservative rule: tools present
// and at least agenticToolCallThreshold previous assistant messages already
// carried tool_calls.
const agenticToolCallThreshold = 1

func isAgentic(req chatproto.ChatRequest) bool {
	if len(req.Tools) == 0 {
		return false
	}
	count := 0
	for _, m := range req.Messages {
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			count++
		}
	}
	return count >= agenticToolCallThreshold
}

// estimateCost prices a request against a model's registry entry, assuming
// the request's own token estimate for both prompt and completion (a
// pre-dispatch estimate; actual cost is tracked post-response from real
// usage).
func estimateCost(m registry.Model, promptTokens, estimatedCompletionTokens int) float64 {
	return float64(promptTokens)/1_000_000*m.InputPrice + float64(estimatedCompletionTokens)/1_000_000*m.OutputPrice
}

// baselineModel returns the most expensive model among candidates (by
// input+output price), used for RoutingDecision.BaselineCost (spec.md §3:
// "cost of the most-expensive tier-appropriate model").
func baselineModel(reg *registry.Registry, candidates []string) (registry.Model, bool) {
	var best registry.Model
	found := false
	for _, id := range candidates {
		m, ok := reg.Get(id)
		if !ok {
			continue
		}
		if !found || (m.InputPrice+m.OutputPrice) > (best.InputPrice+best.OutputPrice) {
			best = m
			found = true
		}
	}
	return best, found
}

func reasoningText(tier classifier.Tier, signals []string, model string) string {
	return fmt.Sprintf("classified %s via signals %v, routed to %s", tier, signals, model)
}
