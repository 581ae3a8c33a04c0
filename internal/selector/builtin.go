package selector

import "github.com/outpost-run/tiermesh/internal/classifier"

// Builtin returns the default tier tables, wired against the model ids
// registry.Builtin() defines. From Medium up, each agentic tier's primary is
// a model marked Model.Agentic in the registry, since tool-heavy
// conversations benefit from a model proven to handle multi-turn tool_calls
// reliably (spec.md §4.2). The agentic Simple tier (claude-3-5-haiku,
// gpt-4o-mini) and some fallback entries use models not so marked.
func Builtin() Tables {
	return Tables{
		Tiers: map[classifier.Tier]TierConfig{
			classifier.Simple: {
				Primary:  "openai/gpt-4o-mini",
				Fallback: []string{"google/gemini-flash", "anthropic/claude-3-5-haiku"},
			},
			classifier.Medium: {
				Primary:  "anthropic/claude-3-5-haiku",
				Fallback: []string{"openai/gpt-4o", "meta-llama/llama-3-70b"},
			},
			classifier.Complex: {
				Primary:  "anthropic/claude-sonnet-4",
				Fallback: []string{"openai/gpt-4o", "google/gemini-pro"},
			},
			classifier.Reasoning: {
				Primary:  "anthropic/claude-opus-4",
				Fallback: []string{"openai/o1", "google/gemini-pro"},
			},
		},
		AgenticTiers: map[classifier.Tier]TierConfig{
			classifier.Simple: {
				Primary:  "anthropic/claude-3-5-haiku",
				Fallback: []string{"openai/gpt-4o-mini"},
			},
			classifier.Medium: {
				Primary:  "anthropic/claude-sonnet-4",
				Fallback: []string{"openai/gpt-4o", "google/gemini-pro"},
			},
			classifier.Complex: {
				Primary:  "anthropic/claude-sonnet-4",
				Fallback: []string{"openai/o1-mini", "google/gemini-pro"},
			},
			classifier.Reasoning: {
				Primary:  "anthropic/claude-opus-4",
				Fallback: []string{"openai/o1", "google/gemini-pro"},
			},
		},
	}
}
