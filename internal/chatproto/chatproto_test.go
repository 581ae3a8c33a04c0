package chatproto

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abcd", 2},
		{"a", 1},
		{"abcdefgh", 3},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.in); got != c.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestUserText_ExcludesSystemAndAssistant(t *testing.T) {
	req := ChatRequest{Messages: []Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
		{Role: "user", Content: "bye"},
	}}
	if got, want := req.UserText(), "hello\nbye"; got != want {
		t.Errorf("UserText() = %q, want %q", got, want)
	}
}

func TestSystemText_ConcatenatesInOrder(t *testing.T) {
	req := ChatRequest{Messages: []Message{
		{Role: "system", Content: "first"},
		{Role: "user", Content: "ignored"},
		{Role: "system", Content: "second"},
	}}
	if got, want := req.SystemText(), "first\nsecond"; got != want {
		t.Errorf("SystemText() = %q, want %q", got, want)
	}
}

func TestTotalPromptTokens_SumsAllMessages(t *testing.T) {
	req := ChatRequest{Messages: []Message{
		{Role: "system", Content: "abcd"},
		{Role: "user", Content: "abcd"},
	}}
	if got, want := req.TotalPromptTokens(), 4; got != want {
		t.Errorf("TotalPromptTokens() = %d, want %d", got, want)
	}
}
