package dialect

import (
	"encoding/json"
	"testing"

	"github.com/outpost-run/tiermesh/internal/chatproto"
)

func TestTranslateRequest_APassthrough(t *testing.T) {
	body := []byte(`{"model":"auto","messages":[{"role":"user","content":"hi"}]}`)
	out, err := TranslateRequest(body, A, "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	var req chatproto.ChatRequest
	if err := json.Unmarshal(out, &req); err != nil {
		t.Fatal(err)
	}
	if req.Model != "gpt-4o" {
		t.Errorf("Model = %s, want gpt-4o", req.Model)
	}
}

func TestTranslateRequest_APassthrough_ThinkingToolCallGetsReasoningContent(t *testing.T) {
	body := []byte(`{"model":"auto","messages":[
		{"role":"user","content":"what's the weather?"},
		{"role":"assistant","thinking":true,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{}"}}]}
	]}`)
	out, err := TranslateRequest(body, A, "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	var req chatproto.ChatRequest
	if err := json.Unmarshal(out, &req); err != nil {
		t.Fatal(err)
	}
	assistant := req.Messages[1]
	if assistant.ReasoningContent == nil {
		t.Fatal("ReasoningContent = nil, want a present (possibly empty) field for a thinking assistant message with tool calls")
	}
	if *assistant.ReasoningContent != "" {
		t.Errorf("ReasoningContent = %q, want empty string when the source carried none", *assistant.ReasoningContent)
	}

	// A non-thinking assistant message with tool calls gets no forced field.
	plain := []byte(`{"model":"auto","messages":[
		{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"f","arguments":"{}"}}]}
	]}`)
	out2, err := TranslateRequest(plain, A, "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	var req2 chatproto.ChatRequest
	if err := json.Unmarshal(out2, &req2); err != nil {
		t.Fatal(err)
	}
	if req2.Messages[0].ReasoningContent != nil {
		t.Errorf("ReasoningContent = %v, want nil when the message is not marked thinking", *req2.Messages[0].ReasoningContent)
	}
}

func TestTranslateRequest_AToB_ExtractsSystem(t *testing.T) {
	body := []byte(`{"model":"auto","messages":[
		{"role":"system","content":"be concise"},
		{"role":"user","content":"hi"}
	]}`)
	out, err := TranslateRequest(body, B, "claude-sonnet-4")
	if err != nil {
		t.Fatal(err)
	}
	var req messagesRequest
	if err := json.Unmarshal(out, &req); err != nil {
		t.Fatal(err)
	}
	if req.System != "be concise" {
		t.Errorf("System = %q, want %q", req.System, "be concise")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("Messages = %+v, want one user message", req.Messages)
	}
	if req.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default %d", req.MaxTokens, defaultMaxTokens)
	}
}

func TestTranslateRequest_AToC_DropsSystemAndRemapsRoles(t *testing.T) {
	body := []byte(`{"model":"auto","messages":[
		{"role":"system","content":"be concise"},
		{"role":"user","content":"hi"},
		{"role":"assistant","content":"hello"}
	]}`)
	out, err := TranslateRequest(body, C, "gemini-pro")
	if err != nil {
		t.Fatal(err)
	}
	var req generateContentRequest
	if err := json.Unmarshal(out, &req); err != nil {
		t.Fatal(err)
	}
	if len(req.Contents) != 2 {
		t.Fatalf("Contents = %+v, want 2 entries (system dropped)", req.Contents)
	}
	if req.Contents[0].Role != "user" || req.Contents[1].Role != "model" {
		t.Errorf("roles = %s, %s, want user, model", req.Contents[0].Role, req.Contents[1].Role)
	}
}

func TestTranslateRequest_AToC_InsertsSyntheticLeadingUser(t *testing.T) {
	body := []byte(`{"model":"auto","messages":[
		{"role":"assistant","content":"hello"}
	]}`)
	out, err := TranslateRequest(body, C, "gemini-pro")
	if err != nil {
		t.Fatal(err)
	}
	var req generateContentRequest
	if err := json.Unmarshal(out, &req); err != nil {
		t.Fatal(err)
	}
	if len(req.Contents) != 2 || req.Contents[0].Role != "user" {
		t.Errorf("Contents = %+v, want synthetic leading user message", req.Contents)
	}
}

func TestTranslateRequest_UnknownDialect(t *testing.T) {
	body := []byte(`{"model":"auto","messages":[]}`)
	_, err := TranslateRequest(body, "bogus", "x")
	if err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestSanitizeToolCallID(t *testing.T) {
	got := SanitizeToolCallID("call#1 abc/def")
	want := "call_1_abc_def"
	if got != want {
		t.Errorf("SanitizeToolCallID() = %q, want %q", got, want)
	}
}

func TestTranslateResponseB(t *testing.T) {
	body := []byte(`{
		"id": "msg_1", "model": "claude-sonnet-4",
		"content": [{"type":"text","text":"hello there"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)
	out, err := TranslateResponseB(body)
	if err != nil {
		t.Fatal(err)
	}
	var resp chatproto.ChatResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "hello there" {
		t.Errorf("Choices = %+v, want hello there", resp.Choices)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("FinishReason = %s, want stop", resp.Choices[0].FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestRemapRole(t *testing.T) {
	cases := map[string]string{
		"developer": "system", "model": "assistant", "system": "system",
		"user": "user", "assistant": "assistant", "tool": "tool", "weird": "user",
	}
	for in, want := range cases {
		if got := remapRole(in); got != want {
			t.Errorf("remapRole(%q) = %q, want %q", in, got, want)
		}
	}
}
