package selector

import (
	"testing"

	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/registry"
)

func testTables() Tables {
	return Tables{
		Tiers: map[classifier.Tier]TierConfig{
			classifier.Simple:  {Primary: "a/cheap", Fallback: []string{"b/mid"}},
			classifier.Medium:  {Primary: "b/mid", Fallback: []string{"a/cheap", "c/expensive"}},
			classifier.Complex: {Primary: "c/expensive", Fallback: []string{"b/mid"}},
		},
		AgenticTiers: map[classifier.Tier]TierConfig{
			classifier.Simple: {Primary: "b/mid", Fallback: []string{"a/cheap"}},
		},
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Model{
		{ID: "a/cheap", ContextWindow: 8000},
		{ID: "b/mid", ContextWindow: 32000},
		{ID: "c/expensive", ContextWindow: 128000},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func allReachable(string) bool { return true }

func TestValidate_OK(t *testing.T) {
	if err := testTables().Validate(testRegistry(t)); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_UnknownModel(t *testing.T) {
	tables := testTables()
	tables.Tiers[classifier.Reasoning] = TierConfig{Primary: "missing/model"}
	if err := tables.Validate(testRegistry(t)); err == nil {
		t.Fatal("expected error for unknown model id")
	}
}

func TestSelect_PrimaryReachable(t *testing.T) {
	s := New(testTables())
	primary, fallback, ok := s.Select(classifier.Simple, false, allReachable)
	if !ok || primary != "a/cheap" || len(fallback) != 1 || fallback[0] != "b/mid" {
		t.Errorf("Select() = %q, %v, %v", primary, fallback, ok)
	}
}

func TestSelect_SkipsUnreachableWithinTier(t *testing.T) {
	s := New(testTables())
	reachable := func(id string) bool { return id != "a/cheap" }
	primary, fallback, ok := s.Select(classifier.Simple, false, reachable)
	if !ok || primary != "b/mid" || len(fallback) != 0 {
		t.Errorf("Select() = %q, %v, %v, want b/mid with no fallback", primary, fallback, ok)
	}
}

func TestSelect_WidensToAdjacentTier(t *testing.T) {
	s := New(testTables())
	reachable := func(id string) bool { return id == "c/expensive" }
	primary, _, ok := s.Select(classifier.Simple, false, reachable)
	if !ok || primary != "c/expensive" {
		t.Errorf("Select() = %q, %v, want widening to find c/expensive", primary, ok)
	}
}

func TestSelect_NoneReachable(t *testing.T) {
	s := New(testTables())
	_, _, ok := s.Select(classifier.Simple, false, func(string) bool { return false })
	if ok {
		t.Error("expected ok=false when nothing is reachable")
	}
}

func TestSelect_AgenticUsesAgenticTable(t *testing.T) {
	s := New(testTables())
	primary, _, ok := s.Select(classifier.Simple, true, allReachable)
	if !ok || primary != "b/mid" {
		t.Errorf("Select(agentic) = %q, %v, want b/mid from AgenticTiers", primary, ok)
	}
}

func TestSelect_AgenticWidensWithinAgenticTable(t *testing.T) {
	s := New(testTables())
	// Complex has no entry in AgenticTiers; widening should still land on
	// a reachable tier if one exists there, not error out immediately.
	primary, _, ok := s.Select(classifier.Complex, true, allReachable)
	if !ok || primary != "b/mid" {
		t.Errorf("Select(Complex, agentic) = %q, %v, want b/mid from the widened AgenticTiers Simple entry", primary, ok)
	}
}

func TestBuiltin_ValidatesAgainstBuiltinRegistry(t *testing.T) {
	reg, err := registry.New(registry.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	if err := Builtin().Validate(reg); err != nil {
		t.Errorf("Builtin tables do not validate against Builtin registry: %v", err)
	}
}
