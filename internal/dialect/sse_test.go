package dialect

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/outpost-run/tiermesh/internal/chatproto"
)

func TestFrameTranslator_A_PassthroughStripsThinking(t *testing.T) {
	tr := NewFrameTranslator(A, "chatcmpl-1", "gpt-4o")
	chunk := `{"id":"x","choices":[{"index":0,"delta":{"content":"<thinking>hmm</thinking>hello"}}]}`
	frames, done, err := tr.Feed([]byte("data: " + chunk + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("did not expect done yet")
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if strings.Contains(string(frames[0]), "thinking") {
		t.Errorf("frame still contains thinking block: %s", frames[0])
	}
}

func TestFrameTranslator_A_Done(t *testing.T) {
	tr := NewFrameTranslator(A, "x", "gpt-4o")
	frames, done, err := tr.Feed([]byte("data: [DONE]\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !done || len(frames) != 1 || string(frames[0]) != string(doneFrame) {
		t.Errorf("frames=%v done=%v, want done frame", frames, done)
	}
}

func TestFrameTranslator_B_MessageStartEmitsRole(t *testing.T) {
	tr := NewFrameTranslator(B, "msg_1", "claude-sonnet-4")
	ev := `{"type":"message_start","message":{"role":"assistant"}}`
	frames, _, err := tr.Feed([]byte("event: message_start\ndata: " + ev + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	var chunk chatproto.ChatChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(string(frames[0]), "data: ")), &chunk); err != nil {
		t.Fatal(err)
	}
	if chunk.Choices[0].Delta.Role != "assistant" {
		t.Errorf("Delta.Role = %q, want assistant", chunk.Choices[0].Delta.Role)
	}
}

func TestFrameTranslator_B_ContentDelta(t *testing.T) {
	tr := NewFrameTranslator(B, "msg_1", "claude-sonnet-4")
	ev := `{"type":"content_block_delta","delta":{"type":"text_delta","text":"hello"}}`
	frames, _, err := tr.Feed([]byte("data: " + ev + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || !strings.Contains(string(frames[0]), "hello") {
		t.Errorf("frames = %v, want one frame containing hello", frames)
	}
}

func TestFrameTranslator_B_StopReasonMapped(t *testing.T) {
	tr := NewFrameTranslator(B, "msg_1", "claude-sonnet-4")
	ev := `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`
	frames, _, err := tr.Feed([]byte("data: " + ev + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || !strings.Contains(string(frames[0]), `"finish_reason":"stop"`) {
		t.Errorf("frames = %v, want mapped finish_reason stop", frames)
	}
}

func TestFrameTranslator_B_ToolUseStreamsAsToolCallsDelta(t *testing.T) {
	tr := NewFrameTranslator(B, "msg_1", "claude-sonnet-4")

	start := `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_01!bad","name":"get_weather"}}`
	frames, _, err := tr.Feed([]byte("data: " + start + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	var chunk chatproto.ChatChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(string(frames[0]), "data: ")), &chunk); err != nil {
		t.Fatal(err)
	}
	tc := chunk.Choices[0].Delta.ToolCalls
	if len(tc) != 1 || tc[0].Index != 0 || tc[0].Type != "function" || tc[0].Function.Name != "get_weather" {
		t.Fatalf("start tool call delta = %+v, want index 0, type function, name get_weather", tc)
	}
	if strings.ContainsAny(tc[0].ID, "!") {
		t.Errorf("ID = %q, want sanitized tool-call id", tc[0].ID)
	}

	delta := `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`
	frames, _, err = tr.Feed([]byte("data: " + delta + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	var chunk2 chatproto.ChatChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(string(frames[0]), "data: ")), &chunk2); err != nil {
		t.Fatal(err)
	}
	tc2 := chunk2.Choices[0].Delta.ToolCalls
	if len(tc2) != 1 || tc2[0].Index != 0 || tc2[0].ID != "" || tc2[0].Function.Arguments != `{"city":` {
		t.Fatalf("continuation tool call delta = %+v, want index 0, no id, arguments fragment", tc2)
	}
}

func TestFrameTranslator_C_FunctionCallEmitsToolCallsDelta(t *testing.T) {
	tr := NewFrameTranslator(C, "x", "gemini-pro")
	chunk := `{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"SF"}}}]},"finishReason":"STOP"}]}`
	frames, _, err := tr.Feed([]byte("data: " + chunk + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	// role + tool_calls + finish_reason (no text part in this chunk).
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3 (role, tool_calls, finish_reason)", len(frames))
	}
	var parsed chatproto.ChatChunk
	if err := json.Unmarshal([]byte(strings.TrimPrefix(string(frames[1]), "data: ")), &parsed); err != nil {
		t.Fatal(err)
	}
	tc := parsed.Choices[0].Delta.ToolCalls
	if len(tc) != 1 || tc[0].Function.Name != "get_weather" || tc[0].Function.Arguments == "" {
		t.Fatalf("tool call delta = %+v, want name get_weather with arguments", tc)
	}
}

func TestFrameTranslator_C_EmitsRoleOnceThenContent(t *testing.T) {
	tr := NewFrameTranslator(C, "x", "gemini-pro")
	chunk := `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`
	frames, _, err := tr.Feed([]byte("data: " + chunk + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2 (role + content)", len(frames))
	}

	// A second chunk should not repeat the role frame.
	frames2, _, err := tr.Feed([]byte("data: " + chunk + "\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames2) != 1 {
		t.Errorf("got %d frames on second chunk, want 1 (no repeated role)", len(frames2))
	}
}

func TestFrameTranslator_PartialFrameAcrossFeeds(t *testing.T) {
	tr := NewFrameTranslator(A, "x", "gpt-4o")
	full := `data: {"id":"x","choices":[{"index":0,"delta":{"content":"hi"}}]}` + "\n\n"
	mid := len(full) / 2

	frames, done, err := tr.Feed([]byte(full[:mid]))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 || done {
		t.Fatalf("expected no complete frame yet, got frames=%v done=%v", frames, done)
	}

	frames, done, err = tr.Feed([]byte(full[mid:]))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || done {
		t.Fatalf("expected exactly one complete frame, got frames=%v done=%v", frames, done)
	}
}

func TestFrameTranslator_SSECommentsIgnored(t *testing.T) {
	tr := NewFrameTranslator(A, "x", "gpt-4o")
	frames, _, err := tr.Feed([]byte(": heartbeat\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Errorf("expected SSE comment to produce no frames, got %v", frames)
	}
}

func TestFrameTranslator_VendorCommentInDataField(t *testing.T) {
	tr := NewFrameTranslator(A, "x", "gpt-4o")
	frames, _, err := tr.Feed([]byte("data: : PROCESSING\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Errorf("expected vendor comment-in-data to produce no frames, got %v", frames)
	}
}
