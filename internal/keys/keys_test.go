package keys

import (
	"testing"

	"github.com/outpost-run/tiermesh/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Model{
		{ID: "openai/gpt-4o", ProviderPrefix: "openai", NativeDialect: registry.DialectA, ContextWindow: 128000},
		{ID: "anthropic/claude", ProviderPrefix: "anthropic", NativeDialect: registry.DialectB, ContextWindow: 200000},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestResolve_DirectDialectA(t *testing.T) {
	r := New(testRegistry(t), ProviderKeys{
		Direct: map[string]ProviderKey{"openai": {APIKey: "sk-1", BaseURL: "https://api.openai.com"}},
	})
	access := r.Resolve("openai/gpt-4o")
	if access.Unreachable || access.ViaGateway || access.APIKey != "sk-1" {
		t.Errorf("Resolve() = %+v, want direct openai access", access)
	}
}

func TestResolve_NonDialectAPrefersGateway(t *testing.T) {
	r := New(testRegistry(t), ProviderKeys{
		Direct:  map[string]ProviderKey{"anthropic": {APIKey: "direct-key"}},
		Gateway: &GatewayKey{APIKey: "gw-key", BaseURL: "https://gateway.example.com"},
	})
	access := r.Resolve("anthropic/claude")
	if !access.ViaGateway || access.APIKey != "gw-key" {
		t.Errorf("Resolve() = %+v, want gateway access even though a direct key exists", access)
	}
}

func TestResolve_UniversalGatewayFallback(t *testing.T) {
	r := New(testRegistry(t), ProviderKeys{
		Gateway: &GatewayKey{APIKey: "gw-key", BaseURL: "https://gateway.example.com"},
	})
	access := r.Resolve("openai/gpt-4o")
	if !access.ViaGateway || access.APIKey != "gw-key" {
		t.Errorf("Resolve() = %+v, want gateway fallback for dialect A with no direct key", access)
	}
}

func TestResolve_Unreachable(t *testing.T) {
	r := New(testRegistry(t), ProviderKeys{})
	access := r.Resolve("openai/gpt-4o")
	if !access.Unreachable {
		t.Errorf("Resolve() = %+v, want Unreachable with no keys configured", access)
	}
}

func TestResolve_UnknownModel(t *testing.T) {
	r := New(testRegistry(t), ProviderKeys{Gateway: &GatewayKey{APIKey: "gw-key"}})
	access := r.Resolve("nonexistent/model")
	if !access.Unreachable {
		t.Errorf("Resolve() = %+v, want Unreachable for unknown model", access)
	}
}

func TestReachable(t *testing.T) {
	r := New(testRegistry(t), ProviderKeys{
		Direct: map[string]ProviderKey{"openai": {APIKey: "sk-1"}},
	})
	if !r.Reachable("openai/gpt-4o") {
		t.Error("expected openai/gpt-4o to be reachable")
	}
	if r.Reachable("anthropic/claude") {
		t.Error("expected anthropic/claude to be unreachable with no gateway and no matching direct key")
	}
}

func TestConfiguredProviders(t *testing.T) {
	k := ProviderKeys{Direct: map[string]ProviderKey{"openai": {APIKey: "x"}, "anthropic": {APIKey: "y"}}}
	if !k.DirectKeyConfigured("openai") || k.DirectKeyConfigured("google") {
		t.Error("DirectKeyConfigured mismatch")
	}
	providers := k.ConfiguredProviders()
	if len(providers) != 2 {
		t.Errorf("ConfiguredProviders() = %v, want 2 entries", providers)
	}
}
