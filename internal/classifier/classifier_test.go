package classifier

import "testing"

func TestClassify_Greeting(t *testing.T) {
	r := Classify("hi there", "", 3, 3, DefaultScoringConfig())
	if r.Tier != Simple {
		t.Errorf("Tier = %v, want SIMPLE", r.Tier)
	}
}

func TestClassify_ReasoningCue(t *testing.T) {
	r := Classify("Please think through this step by step and prove that the algorithm terminates.", "", 20, 20, DefaultScoringConfig())
	if r.Tier != Reasoning {
		t.Errorf("Tier = %v, want REASONING", r.Tier)
	}
}

func TestClassify_StructuredOutputFloorsMedium(t *testing.T) {
	r := Classify("respond in json", "", 5, 5, DefaultScoringConfig())
	if r.Tier != Medium {
		t.Errorf("Tier = %v, want MEDIUM (structured output floor)", r.Tier)
	}
}

func TestClassify_HardComplexPin(t *testing.T) {
	cfg := DefaultScoringConfig()
	r := Classify("hello", "", cfg.ComplexTokenThreshold+1, cfg.ComplexTokenThreshold+1, cfg)
	if r.Tier != Complex {
		t.Errorf("Tier = %v, want COMPLEX (hard pin)", r.Tier)
	}
}

func TestClassify_ReasoningBeatsHardPin(t *testing.T) {
	cfg := DefaultScoringConfig()
	r := Classify("prove that this step by step derivation holds", "", cfg.ComplexTokenThreshold+1, cfg.ComplexTokenThreshold+1, cfg)
	if r.Tier != Reasoning {
		t.Errorf("Tier = %v, want REASONING (beats hard pin per tie-break)", r.Tier)
	}
}

func TestClassify_SystemPromptIsolation(t *testing.T) {
	cfg := DefaultScoringConfig()
	userTokens := 10
	// A huge system prompt must not, by itself, change the tier: only
	// userTokens feeds the score and the hard pin.
	hugeSystemPrompt := make([]byte, 500000)
	for i := range hugeSystemPrompt {
		hugeSystemPrompt[i] = 'a'
	}
	withoutSystem := Classify("hi there", "", userTokens, userTokens, cfg)
	withSystem := Classify("hi there", string(hugeSystemPrompt), userTokens, userTokens+200000, cfg)
	if withoutSystem.Tier != withSystem.Tier {
		t.Errorf("system prompt size changed tier: without=%v with=%v", withoutSystem.Tier, withSystem.Tier)
	}
}

func TestClassify_Interrogative(t *testing.T) {
	r := Classify("What is the capital of France?", "", 10, 10, DefaultScoringConfig())
	if r.Tier != Simple {
		t.Errorf("Tier = %v, want SIMPLE for a short factual question", r.Tier)
	}
}

func TestClassify_CodeBlock(t *testing.T) {
	prompt := "Can you review this?\n```go\nfunc main() {}\n```"
	r := Classify(prompt, "", 40, 40, DefaultScoringConfig())
	if !contains(r.Signals, "code_block") {
		t.Errorf("Signals = %v, want code_block present", r.Signals)
	}
}

func TestTierString(t *testing.T) {
	cases := map[Tier]string{Simple: "SIMPLE", Medium: "MEDIUM", Complex: "COMPLEX", Reasoning: "REASONING", Tier(99): "UNKNOWN"}
	for tier, want := range cases {
		if got := tier.String(); got != want {
			t.Errorf("Tier(%d).String() = %s, want %s", tier, got, want)
		}
	}
}

func TestScoringConfig_Normalize(t *testing.T) {
	var zero ScoringConfig
	normalized := zero.Normalize()
	def := DefaultScoringConfig()
	if normalized != def {
		t.Errorf("Normalize() of zero value = %+v, want default %+v", normalized, def)
	}
}
