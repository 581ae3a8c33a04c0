// Package registry holds the static model catalog (C1): immutable entries
// describing every model the proxy may route to, keyed by "<provider>/<name>".
//
// Grounded on internal/agents/registry.go's map-of-configs shape, generalized
// from per-agent configuration to per-model catalog entries.
package registry

import (
	"fmt"
	"strings"
)

// Dialect identifies the wire shape a provider speaks natively.
type Dialect string

const (
	// DialectA is the OpenAI-compatible chat-completions dialect.
	DialectA Dialect = "openai"
	// DialectB is Anthropic's "messages" dialect (top-level system, input/output tokens).
	DialectB Dialect = "messages"
	// DialectC is Google's streamed generate-content dialect.
	DialectC Dialect = "generate-content"
)

// AutoModelID is the reserved id meaning "let the router choose".
const AutoModelID = "auto"

// Model is an immutable catalog entry.
type Model struct {
	ID             string  // "<providerPrefix>/<name>"
	ProviderPrefix string
	NativeDialect  Dialect
	ContextWindow  int     // tokens
	InputPrice     float64 // currency per million input tokens
	OutputPrice    float64 // currency per million output tokens
	Agentic        bool    // eligible for the agentic tier table
	// Aliases maps a short, caller-friendly name to the exact id an upstream
	// provider expects (e.g. "sonnet" -> "claude-sonnet-4-20250514").
	// Keyed by the model's Name (its id without the provider prefix); the
	// value is the provider-native name.
	Aliases map[string]string
}

// Name returns the model id without its provider prefix.
func (m Model) Name() string {
	_, name, ok := strings.Cut(m.ID, "/")
	if !ok {
		return m.ID
	}
	return name
}

// NativeName returns the exact name the upstream provider expects, applying
// any configured alias.
func (m Model) NativeName() string {
	name := m.Name()
	if m.Aliases != nil {
		if alias, ok := m.Aliases[name]; ok {
			return alias
		}
	}
	return name
}

// FitsBudget reports whether m's context window can hold an estimated
// promptTokens plus the caller's requested maxTokens completion budget
// (spec.md §4.4 FALLBACK_NEXT requirement (b): a model whose context window
// is smaller than the estimated tokens is skipped without being called).
func (m Model) FitsBudget(promptTokens, maxTokens int) bool {
	return m.ContextWindow >= promptTokens+maxTokens
}

// Registry is the static, immutable-after-load model catalog.
type Registry struct {
	models map[string]Model
	order  []string // insertion order, for deterministic listing
}

// New builds a Registry from a list of models. The registry is immutable
// after construction; there is no mutation API by design (spec §5: "Routing
// config ... immutable after startup").
func New(models []Model) (*Registry, error) {
	r := &Registry{models: make(map[string]Model, len(models))}
	for _, m := range models {
		if m.ID == "" {
			return nil, fmt.Errorf("registry: model with empty id")
		}
		if m.ID == AutoModelID {
			return nil, fmt.Errorf("registry: %q is reserved and cannot be a catalog entry", AutoModelID)
		}
		if _, exists := r.models[m.ID]; exists {
			return nil, fmt.Errorf("registry: duplicate model id %q", m.ID)
		}
		if m.ContextWindow <= 0 {
			return nil, fmt.Errorf("registry: model %q must have a positive context window", m.ID)
		}
		r.models[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	return r, nil
}

// Get looks up a model by id.
func (r *Registry) Get(id string) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// MustHave validates that every id in ids is present in the registry.
func (r *Registry) MustHave(ids ...string) error {
	for _, id := range ids {
		if _, ok := r.models[id]; !ok {
			return fmt.Errorf("registry: unknown model id %q", id)
		}
	}
	return nil
}

// List returns every model in the registry, in catalog order.
func (r *Registry) List() []Model {
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// Len reports the number of catalog entries.
func (r *Registry) Len() int {
	return len(r.models)
}
