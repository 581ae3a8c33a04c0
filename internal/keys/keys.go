// Package keys implements the Key Resolver (C2): given a model id, decides
// which credentials and upstream base URL to use, following the direct-vs
// gateway priority order in spec.md §4.8.
//
// Grounded on internal/config/config.go's per-provider key fields and
// internal/llm/router.go's prefix-based provider resolution, generalized to
// the registry-driven dialect lookup this module uses instead of
// hardcoded prefix switches.
package keys

import (
	"github.com/outpost-run/tiermesh/internal/registry"
)

// Access is what the Key Resolver hands back: enough for the proxy to sign
// and address an upstream request.
type Access struct {
	APIKey      string
	BaseURL     string
	Provider    string
	ViaGateway  bool
	Unreachable bool
}

// ProviderKeys is the direct (non-gateway) credential set, one entry per
// provider prefix, plus the single gateway key if configured.
type ProviderKeys struct {
	Direct  map[string]ProviderKey // keyed by providerPrefix
	Gateway *GatewayKey
}

// ProviderKey is a direct provider's credentials.
type ProviderKey struct {
	APIKey  string
	BaseURL string
}

// GatewayKey is the aggregator gateway's credentials.
type GatewayKey struct {
	APIKey  string
	BaseURL string
}

// Resolver resolves model ids to Access values.
type Resolver struct {
	registry *registry.Registry
	keys     ProviderKeys
}

// New builds a Resolver over a registry and the caller's resolved key set.
func New(reg *registry.Registry, keys ProviderKeys) *Resolver {
	return &Resolver{registry: reg, keys: keys}
}

// Resolve implements the four-step priority order from spec.md §4.8.
func (r *Resolver) Resolve(modelID string) Access {
	m, ok := r.registry.Get(modelID)
	if !ok {
		return Access{Unreachable: true}
	}

	nativeA := m.NativeDialect == registry.DialectA

	// Step 1: needs translation (not dialect A) and a gateway key exists.
	if !nativeA && r.keys.Gateway != nil {
		return r.gatewayAccess(m)
	}

	// Step 2: direct key exists and the provider speaks dialect A natively.
	if direct, ok := r.keys.Direct[m.ProviderPrefix]; ok && nativeA {
		return Access{APIKey: direct.APIKey, BaseURL: direct.BaseURL, Provider: m.ProviderPrefix}
	}

	// Step 3: universal gateway fallback.
	if r.keys.Gateway != nil {
		return r.gatewayAccess(m)
	}

	// Step 4: unreachable.
	return Access{Unreachable: true}
}

// Reachable reports whether Resolve(modelID) would return a usable Access.
// Used by the Selector's tier-widening logic.
func (r *Resolver) Reachable(modelID string) bool {
	return !r.Resolve(modelID).Unreachable
}

func (r *Resolver) gatewayAccess(m registry.Model) Access {
	return Access{
		APIKey:     r.keys.Gateway.APIKey,
		BaseURL:    r.keys.Gateway.BaseURL,
		Provider:   m.ProviderPrefix,
		ViaGateway: true,
	}
}

// DirectKeyConfigured reports whether any direct provider credential is
// configured for prefix, ignoring dialect.
func (k ProviderKeys) DirectKeyConfigured(prefix string) bool {
	_, ok := k.Direct[prefix]
	return ok
}

// ConfiguredProviders lists every provider prefix with a direct key, in map
// iteration order, which is unspecified (callers needing deterministic order
// should sort the result themselves).
func (k ProviderKeys) ConfiguredProviders() []string {
	out := make([]string, 0, len(k.Direct))
	for prefix := range k.Direct {
		out = append(out, prefix)
	}
	return out
}
