package registry

// Builtin returns the default catalog the gateway ships with, one entry per
// model across the three dialects this module understands. Prices are per
// million tokens, current as of the module's cost-table grounding (internal
// teacher pricing in internal/llm/cost_tracker.go's CalculateCost map),
// carried forward to the registry since spec.md §3 makes the registry the
// single source of pricing truth.
//
// Grounded on internal/agents/registry.go's LoadBuiltInAgents: a flat,
// hand-maintained slice literal rather than a config file, generalized from
// per-agent defaults to per-model catalog entries.
func Builtin() []Model {
	return []Model{
		{
			ID: "openai/gpt-4o-mini", ProviderPrefix: "openai", NativeDialect: DialectA,
			ContextWindow: 128_000, InputPrice: 0.15, OutputPrice: 0.60,
			Aliases: map[string]string{"gpt-4o-mini": "gpt-4o-mini"},
		},
		{
			ID: "openai/gpt-4o", ProviderPrefix: "openai", NativeDialect: DialectA,
			ContextWindow: 128_000, InputPrice: 2.50, OutputPrice: 10.00,
			Aliases: map[string]string{"gpt-4o": "gpt-4o"},
		},
		{
			ID: "openai/o1-mini", ProviderPrefix: "openai", NativeDialect: DialectA,
			ContextWindow: 128_000, InputPrice: 3.00, OutputPrice: 12.00, Agentic: true,
			Aliases: map[string]string{"o1-mini": "o1-mini"},
		},
		{
			ID: "openai/o1", ProviderPrefix: "openai", NativeDialect: DialectA,
			ContextWindow: 200_000, InputPrice: 15.00, OutputPrice: 60.00, Agentic: true,
			Aliases: map[string]string{"o1": "o1"},
		},
		{
			ID: "anthropic/claude-3-5-haiku", ProviderPrefix: "anthropic", NativeDialect: DialectB,
			ContextWindow: 200_000, InputPrice: 0.80, OutputPrice: 4.00,
			Aliases: map[string]string{"claude-3-5-haiku": "claude-3-5-haiku-20241022"},
		},
		{
			ID: "anthropic/claude-sonnet-4", ProviderPrefix: "anthropic", NativeDialect: DialectB,
			ContextWindow: 200_000, InputPrice: 3.00, OutputPrice: 15.00, Agentic: true,
			Aliases: map[string]string{"claude-sonnet-4": "claude-sonnet-4-20250514"},
		},
		{
			ID: "anthropic/claude-opus-4", ProviderPrefix: "anthropic", NativeDialect: DialectB,
			ContextWindow: 200_000, InputPrice: 15.00, OutputPrice: 75.00, Agentic: true,
			Aliases: map[string]string{"claude-opus-4": "claude-opus-4-20250514"},
		},
		{
			ID: "google/gemini-flash", ProviderPrefix: "google", NativeDialect: DialectC,
			ContextWindow: 1_000_000, InputPrice: 0.075, OutputPrice: 0.30,
			Aliases: map[string]string{"gemini-flash": "gemini-2.0-flash"},
		},
		{
			ID: "google/gemini-pro", ProviderPrefix: "google", NativeDialect: DialectC,
			ContextWindow: 2_000_000, InputPrice: 1.25, OutputPrice: 5.00, Agentic: true,
			Aliases: map[string]string{"gemini-pro": "gemini-2.5-pro"},
		},
		{
			ID: "meta-llama/llama-3-70b", ProviderPrefix: "meta-llama", NativeDialect: DialectA,
			ContextWindow: 128_000, InputPrice: 0.59, OutputPrice: 0.79,
			Aliases: map[string]string{"llama-3-70b": "llama-3-70b-instruct"},
		},
	}
}
