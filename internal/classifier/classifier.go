// Package classifier implements the routing brain's scoring half (C3): a
// pure function from a prompt and its token budget to a cost tier.
//
// Grounded on internal/llm/complexity_router.go's assessComplexity, which
// scores a request by weighted-sum over several structural signals. This
// package generalizes that pattern to the full seven-dimension table and
// makes every weight and cutoff configurable.
package classifier

import (
	"strings"
	"unicode"
)

// Tier is a cost/capability band.
type Tier int

const (
	Simple Tier = iota
	Medium
	Complex
	Reasoning
)

func (t Tier) String() string {
	switch t {
	case Simple:
		return "SIMPLE"
	case Medium:
		return "MEDIUM"
	case Complex:
		return "COMPLEX"
	case Reasoning:
		return "REASONING"
	default:
		return "UNKNOWN"
	}
}

// ScoringConfig holds every weight and cutoff used by Classify. Zero-value
// fields are replaced with DefaultScoringConfig's values by Normalize.
type ScoringConfig struct {
	ReasoningCueWeight   float64
	ShortPromptWeight    float64 // negative
	LongPromptWeight     float64 // positive
	MediumTokenWeight    float64
	StructuredOutputWeight float64
	InterrogativeWeight  float64 // negative
	GreetingWeight       float64 // negative
	CodeBlockWeight      float64

	ShortPromptMaxCodePoints int
	LongPromptMinCodePoints  int

	ComplexTokenThreshold int // hard pin to COMPLEX above this (user tokens only)
	MediumTokenThreshold  int

	ReasoningCutoff float64
	ComplexCutoff   float64
	MediumCutoff    float64
}

// DefaultScoringConfig returns the module's built-in defaults. The exact
// weights are an open question in the source spec; these are sensible
// starting points, fully overridable via ScoringConfig.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		ReasoningCueWeight:     4.0,
		ShortPromptWeight:      -0.5,
		LongPromptWeight:       0.5,
		MediumTokenWeight:      0.75,
		StructuredOutputWeight: 0.6,
		InterrogativeWeight:    -0.3,
		GreetingWeight:         -3.0,
		CodeBlockWeight:        0.6,

		ShortPromptMaxCodePoints: 80,
		LongPromptMinCodePoints:  400,

		ComplexTokenThreshold: 100_000,
		MediumTokenThreshold:  4_000,

		ReasoningCutoff: 3.0,
		ComplexCutoff:   1.5,
		MediumCutoff:    0.6,
	}
}

// Normalize fills zero-valued fields from DefaultScoringConfig, so callers
// may supply a partially-specified ScoringConfig.
func (c ScoringConfig) Normalize() ScoringConfig {
	d := DefaultScoringConfig()
	if c.ReasoningCueWeight == 0 {
		c.ReasoningCueWeight = d.ReasoningCueWeight
	}
	if c.ShortPromptWeight == 0 {
		c.ShortPromptWeight = d.ShortPromptWeight
	}
	if c.LongPromptWeight == 0 {
		c.LongPromptWeight = d.LongPromptWeight
	}
	if c.MediumTokenWeight == 0 {
		c.MediumTokenWeight = d.MediumTokenWeight
	}
	if c.StructuredOutputWeight == 0 {
		c.StructuredOutputWeight = d.StructuredOutputWeight
	}
	if c.InterrogativeWeight == 0 {
		c.InterrogativeWeight = d.InterrogativeWeight
	}
	if c.GreetingWeight == 0 {
		c.GreetingWeight = d.GreetingWeight
	}
	if c.CodeBlockWeight == 0 {
		c.CodeBlockWeight = d.CodeBlockWeight
	}
	if c.ShortPromptMaxCodePoints == 0 {
		c.ShortPromptMaxCodePoints = d.ShortPromptMaxCodePoints
	}
	if c.LongPromptMinCodePoints == 0 {
		c.LongPromptMinCodePoints = d.LongPromptMinCodePoints
	}
	if c.ComplexTokenThreshold == 0 {
		c.ComplexTokenThreshold = d.ComplexTokenThreshold
	}
	if c.MediumTokenThreshold == 0 {
		c.MediumTokenThreshold = d.MediumTokenThreshold
	}
	if c.ReasoningCutoff == 0 {
		c.ReasoningCutoff = d.ReasoningCutoff
	}
	if c.ComplexCutoff == 0 {
		c.ComplexCutoff = d.ComplexCutoff
	}
	if c.MediumCutoff == 0 {
		c.MediumCutoff = d.MediumCutoff
	}
	return c
}

// Result is what Classify returns: a tier, the raw score that produced it,
// and the list of signal names that fired (for logging/debugging).
type Result struct {
	Tier    Tier
	Score   float64
	Signals []string
}

// reasoningCues covers English plus a handful of non-Latin-script
// equivalents, per spec's multilingual requirement. Not exhaustive by
// design — it is a data table, extendable without touching scoring code.
var reasoningCues = []string{
	"step by step", "step-by-step", "prove that", "prove this", "derive",
	"chain of thought", "think through", "reason through", "work through this",
	"show your work", "first principles",
	// German
	"schritt für schritt", "beweise", "herleiten",
	// Cyrillic (Russian): "step by step", "prove"
	"шаг за шагом", "докажи",
	// CJK (Chinese): "step by step", "derive/prove"
	"一步一步", "逐步", "推导", "证明",
	// CJK (Japanese)
	"ステップバイステップ", "段階的に",
}

var structuredOutputCues = []string{"json", "yaml", "schema", "respond in"}

var codeBlockMarkers = []string{"```", "def ", "func ", "class ", "SELECT ", "import "}

var interrogativeLeads = []string{
	"who", "what", "when", "why", "how", "where", "which",
	"wer", "was", "wann", "warum", "wie", "wo", // German
	"qui", "quoi", "quand", "pourquoi", "comment", // French
}

// Classify scores userPrompt (never systemPrompt) and returns the resulting
// tier. userTokens is the user-prompt-only estimate, used both for the
// medium-token contribution and for the hard COMPLEX pin; totalTokens, the
// caller's full-conversation estimate, does not feed the score.
func Classify(userPrompt, systemPrompt string, userTokens, totalTokens int, cfg ScoringConfig) Result {
	cfg = cfg.Normalize()

	var score float64
	var signals []string

	lower := strings.ToLower(userPrompt)

	for _, cue := range reasoningCues {
		if strings.Contains(lower, cue) {
			score += cfg.ReasoningCueWeight
			signals = append(signals, "reasoning_cue")
			break
		}
	}

	codePoints := len([]rune(userPrompt))
	switch {
	case codePoints <= cfg.ShortPromptMaxCodePoints:
		score += cfg.ShortPromptWeight
		signals = append(signals, "short_prompt")
	case codePoints > cfg.LongPromptMinCodePoints:
		score += cfg.LongPromptWeight
		signals = append(signals, "long_prompt")
	}

	// Deliberately userTokens, not totalTokens: keeping every scoring
	// dimension user-prompt-only is what makes the system-prompt-isolation
	// invariant hold unconditionally rather than "usually". totalTokens is
	// accepted for callers that want it logged in Result.Signals-adjacent
	// cost math elsewhere, but it never feeds the score.
	if userTokens > cfg.MediumTokenThreshold {
		score += cfg.MediumTokenWeight
		signals = append(signals, "above_medium_tokens")
	}

	for _, cue := range structuredOutputCues {
		if strings.Contains(lower, cue) {
			score += cfg.StructuredOutputWeight
			signals = append(signals, "structured_output")
			break
		}
	}

	if isInterrogative(userPrompt) {
		score += cfg.InterrogativeWeight
		signals = append(signals, "interrogative")
	}

	if isGreeting(userPrompt) {
		score += cfg.GreetingWeight
		signals = append(signals, "greeting")
	}

	for _, marker := range codeBlockMarkers {
		if strings.Contains(userPrompt, marker) {
			score += cfg.CodeBlockWeight
			signals = append(signals, "code_block")
			break
		}
	}

	tier := tierForScore(score, cfg)

	// Structured-output requests floor at MEDIUM regardless of score.
	if tier == Simple && contains(signals, "structured_output") {
		tier = Medium
	}

	// Hard token pin: user-prompt tokens alone crossing the threshold forces
	// COMPLEX — unless the score already implies REASONING, which wins
	// (capability bias, spec §4.1 tie-break rule).
	if userTokens > cfg.ComplexTokenThreshold {
		signals = append(signals, "hard_complex_pin")
		if tier != Reasoning {
			tier = Complex
		}
	}

	return Result{Tier: tier, Score: score, Signals: signals}
}

func tierForScore(score float64, cfg ScoringConfig) Tier {
	switch {
	case score >= cfg.ReasoningCutoff:
		return Reasoning
	case score >= cfg.ComplexCutoff:
		return Complex
	case score >= cfg.MediumCutoff:
		return Medium
	default:
		return Simple
	}
}

func isInterrogative(s string) bool {
	trimmed := strings.TrimSpace(s)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	fields := strings.Fields(strings.ToLower(trimmed))
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) })
	for _, lead := range interrogativeLeads {
		if first == lead {
			return true
		}
	}
	return false
}

func isGreeting(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len([]rune(trimmed)) == 0 {
		return false
	}
	words := strings.Fields(trimmed)
	if len(words) > 3 {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsPunct(r) && r != '?' && r != '!' && r != '.' {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
