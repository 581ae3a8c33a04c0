package dialect

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/outpost-run/tiermesh/internal/chatproto"
)

// Frame is one translated SSE frame, already formatted as
// "data: <json>\n\n" or the literal "data: [DONE]\n\n" terminator, ready to
// write to the client verbatim.
type Frame []byte

var doneFrame = Frame("data: [DONE]\n\n")

// DoneFrame exposes the SSE stream terminator to callers outside this
// package, so a caller emitting a standalone end-of-stream (error paths,
// Finalize) produces the exact same bytes as a translated upstream [DONE].
func DoneFrame() Frame { return doneFrame }

// ErrorFrame formats a single mid-stream error as an SSE data frame in the
// same {"error": {...}} shape the non-streaming path returns (spec.md §4.4,
// §7: "emit a single data: {error:{...}} frame followed by data: [DONE]").
func ErrorFrame(message string) Frame {
	body, err := json.Marshal(chatproto.ErrorBody{
		Error: chatproto.ErrorDetail{Type: "stream_error", Code: "stream_error", Message: message},
	})
	if err != nil {
		body = []byte(`{"error":{"type":"stream_error","message":"stream error"}}`)
	}
	var out bytes.Buffer
	out.WriteString("data: ")
	out.Write(body)
	out.WriteString("\n\n")
	return Frame(out.Bytes())
}

// FrameTranslator holds the state a streaming translation needs across
// reads: a buffer for a partial trailing SSE frame, and (for dialect C)
// whether the role-delta frame has already been emitted for the current
// choice. Per spec.md §9, dialect detection retains the first-bytes
// discriminator (`data: `, `event:`, `: `) but is modeled as this small
// state machine so a chunk boundary landing mid-frame is handled correctly.
type FrameTranslator struct {
	from      Dialect
	id        string
	model     string
	buf       []byte
	roleSent  bool
	event     string // last "event:" line value; recorded only, frames are translated from their data payload
	done      bool   // true once a [DONE] terminator has been emitted

	// toolBlocks maps a dialect-B content_block index to the OpenAI
	// tool_calls array index assigned to it, so later input_json_delta
	// fragments for the same block continue the same index.
	toolBlocks    map[int]int
	nextToolIndex int
}

// NewFrameTranslator builds a translator for a single streaming response.
// id and model populate the outgoing dialect-A chunk envelope.
func NewFrameTranslator(from Dialect, id, model string) *FrameTranslator {
	return &FrameTranslator{from: from, id: id, model: model}
}

// Finalize returns the [DONE] terminator if the upstream stream ended
// without one — true for dialect B (message_stop carries no terminator)
// and dialect C (the stream just ends on EOF) — and nil if Feed already
// observed and forwarded one, so the client never sees it twice.
func (t *FrameTranslator) Finalize() []Frame {
	if t.done {
		return nil
	}
	t.done = true
	return []Frame{doneFrame}
}

// Feed appends newly-read upstream bytes and returns every complete SSE
// frame it can now translate, in order. Any trailing partial frame is
// retained internally for the next call. done is true once a literal
// upstream [DONE] terminator has been observed; dialect B and C streams
// end without one and are terminated by Finalize.
func (t *FrameTranslator) Feed(chunk []byte) (frames []Frame, done bool, err error) {
	t.buf = append(t.buf, chunk...)

	for {
		sep := bytes.Index(t.buf, []byte("\n\n"))
		if sep == -1 {
			break
		}
		raw := t.buf[:sep]
		t.buf = t.buf[sep+2:]

		out, isDone, ferr := t.translateFrame(raw)
		if ferr != nil {
			return frames, done, ferr
		}
		frames = append(frames, out...)
		if isDone {
			done = true
			t.done = true
		}
	}
	return frames, done, nil
}

// translateFrame handles one already-delimited raw SSE event (one or more
// "field: value" lines, no trailing blank line).
func (t *FrameTranslator) translateFrame(raw []byte) (frames []Frame, done bool, err error) {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		switch {
		case bytes.HasPrefix(line, []byte(": ")), bytes.Equal(line, []byte(":")):
			// SSE comment / vendor keepalive — never forwarded; the proxy
			// emits its own heartbeats independently (spec.md §4.4).
			continue
		case bytes.HasPrefix(line, []byte("event:")):
			t.event = string(bytes.TrimSpace(line[len("event:"):]))
			continue
		case bytes.HasPrefix(line, []byte("data:")):
			payload := bytes.TrimSpace(line[len("data:"):])
			if bytes.Equal(payload, []byte("[DONE]")) {
				return []Frame{doneFrame}, true, nil
			}
			if bytes.HasPrefix(payload, []byte(":")) {
				// "data: : PROCESSING" and equivalents — vendor-specific
				// comment smuggled through a data field (spec.md §4.3).
				continue
			}
			out, ferr := t.translatePayload(payload)
			if ferr != nil {
				return frames, false, ferr
			}
			frames = append(frames, out...)
		}
	}
	return frames, false, nil
}

func (t *FrameTranslator) translatePayload(payload []byte) ([]Frame, error) {
	switch t.from {
	case A:
		return t.translateAPayload(payload)
	case B:
		return t.translateBPayload(payload)
	case C:
		return t.translateCPayload(payload)
	default:
		return nil, fmt.Errorf("dialect: unknown source dialect %q", t.from)
	}
}

// translateAPayload re-encodes an already-A-shaped chunk, stripping
// thinking blocks from its content deltas (spec.md §4.3: "For any A-shaped
// frame, the adapter strips thinking token blocks").
func (t *FrameTranslator) translateAPayload(payload []byte) ([]Frame, error) {
	var chunk chatproto.ChatChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("dialect: decode A chunk: %w", err)
	}
	for i := range chunk.Choices {
		chunk.Choices[i].Delta.Content = StripThinking(chunk.Choices[i].Delta.Content)
	}
	return []Frame{encodeChunk(chunk)}, nil
}

// messagesStreamEvent is dialect B's streaming event shape (Anthropic).
type messagesStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Message *struct {
		Role string `json:"role"`
	} `json:"message"`
}

func (t *FrameTranslator) translateBPayload(payload []byte) ([]Frame, error) {
	var ev messagesStreamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("dialect: decode B event: %w", err)
	}

	var frames []Frame
	switch ev.Type {
	case "message_start":
		frames = append(frames, t.roleFrame())
	case "content_block_start":
		// Anthropic opens a tool_use block with its id/name up front, then
		// streams the arguments as input_json_delta fragments below
		// (spec.md §4.3 optional {tool_calls} delta frames).
		if ev.ContentBlock.Type == "tool_use" {
			frames = append(frames, t.toolCallStartFrame(ev.Index, ev.ContentBlock.ID, ev.ContentBlock.Name))
		}
	case "content_block_delta":
		switch ev.Delta.Type {
		case "text_delta":
			frames = append(frames, t.contentFrame(StripThinking(ev.Delta.Text)))
		case "input_json_delta":
			frames = append(frames, t.toolCallArgsFrame(ev.Index, ev.Delta.PartialJSON))
		}
	case "message_delta":
		if ev.Delta.StopReason != "" {
			frames = append(frames, t.finishFrame(mapStopReason(ev.Delta.StopReason)))
		}
	}
	return frames, nil
}

// toolCallStartFrame opens a new tool call at the next free OpenAI
// tool_calls index, remembering the mapping from Anthropic's per-block
// index so later argument fragments land on the same index.
func (t *FrameTranslator) toolCallStartFrame(blockIndex int, id, name string) Frame {
	if t.toolBlocks == nil {
		t.toolBlocks = make(map[int]int)
	}
	idx := t.nextToolIndex
	t.toolBlocks[blockIndex] = idx
	t.nextToolIndex++
	return encodeChunk(chatproto.ChatChunk{
		ID: t.id, Object: "chat.completion.chunk", Model: t.model,
		Choices: []chatproto.ChoiceDelta{{Index: 0, Delta: chatproto.Delta{
			ToolCalls: []chatproto.ToolCallDelta{{
				Index:    idx,
				ID:       SanitizeToolCallID(id),
				Type:     "function",
				Function: &chatproto.ToolCallFunc{Name: name},
			}},
		}}},
	})
}

// toolCallArgsFrame continues an open tool call with its next
// arguments fragment.
func (t *FrameTranslator) toolCallArgsFrame(blockIndex int, argsFragment string) Frame {
	idx, ok := t.toolBlocks[blockIndex]
	if !ok {
		idx = blockIndex
	}
	return encodeChunk(chatproto.ChatChunk{
		ID: t.id, Object: "chat.completion.chunk", Model: t.model,
		Choices: []chatproto.ChoiceDelta{{Index: 0, Delta: chatproto.Delta{
			ToolCalls: []chatproto.ToolCallDelta{{
				Index:    idx,
				Function: &chatproto.ToolCallFunc{Arguments: argsFragment},
			}},
		}}},
	})
}

// generateContentChunk is dialect C's streaming response shape (Google
// generate-content over SSE).
type generateContentChunk struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string `json:"text"`
				FunctionCall *struct {
					Name string          `json:"name"`
					Args json.RawMessage `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (t *FrameTranslator) translateCPayload(payload []byte) ([]Frame, error) {
	var chunk generateContentChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, fmt.Errorf("dialect: decode C chunk: %w", err)
	}

	var frames []Frame
	if !t.roleSent {
		frames = append(frames, t.roleFrame())
	}
	for _, cand := range chunk.Candidates {
		var text string
		for _, p := range cand.Content.Parts {
			text += p.Text
		}
		if text != "" {
			frames = append(frames, t.contentFrame(StripThinking(text)))
		}
		// Gemini delivers a functionCall whole in a single part rather
		// than streaming its arguments incrementally, unlike dialect B's
		// tool_use/input_json_delta pair, so each one becomes a single
		// complete tool_calls delta frame.
		for _, p := range cand.Content.Parts {
			if p.FunctionCall != nil {
				frames = append(frames, t.toolCallFullFrame(p.FunctionCall.Name, p.FunctionCall.Args))
			}
		}
		if cand.FinishReason != "" {
			frames = append(frames, t.finishFrame(mapStopReason(cand.FinishReason)))
		}
	}
	return frames, nil
}

// toolCallFullFrame emits a complete tool call in one frame, for dialects
// (like C) that never split a function call's arguments across fragments.
// Gemini does not assign its function calls a caller-visible id, so one is
// synthesized from the call's position and sanitized the same way an
// upstream-supplied id would be.
func (t *FrameTranslator) toolCallFullFrame(name string, args json.RawMessage) Frame {
	idx := t.nextToolIndex
	t.nextToolIndex++
	id := SanitizeToolCallID(fmt.Sprintf("call_%s_%d", name, idx))
	argStr := string(args)
	if argStr == "" {
		argStr = "{}"
	}
	return encodeChunk(chatproto.ChatChunk{
		ID: t.id, Object: "chat.completion.chunk", Model: t.model,
		Choices: []chatproto.ChoiceDelta{{Index: 0, Delta: chatproto.Delta{
			ToolCalls: []chatproto.ToolCallDelta{{
				Index:    idx,
				ID:       id,
				Type:     "function",
				Function: &chatproto.ToolCallFunc{Name: name, Arguments: argStr},
			}},
		}}},
	})
}

// roleFrame, contentFrame, and finishFrame enforce spec.md §5's ordering
// guarantee: role precedes content precedes tool_calls precedes
// finish_reason, within a single response.
func (t *FrameTranslator) roleFrame() Frame {
	t.roleSent = true
	return encodeChunk(chatproto.ChatChunk{
		ID: t.id, Object: "chat.completion.chunk", Model: t.model,
		Choices: []chatproto.ChoiceDelta{{Index: 0, Delta: chatproto.Delta{Role: "assistant"}}},
	})
}

func (t *FrameTranslator) contentFrame(content string) Frame {
	return encodeChunk(chatproto.ChatChunk{
		ID: t.id, Object: "chat.completion.chunk", Model: t.model,
		Choices: []chatproto.ChoiceDelta{{Index: 0, Delta: chatproto.Delta{Content: content}}},
	})
}

func (t *FrameTranslator) finishFrame(reason string) Frame {
	return encodeChunk(chatproto.ChatChunk{
		ID: t.id, Object: "chat.completion.chunk", Model: t.model,
		Choices: []chatproto.ChoiceDelta{{Index: 0, FinishReason: reason}},
	})
}

func encodeChunk(chunk chatproto.ChatChunk) Frame {
	body, err := json.Marshal(chunk)
	if err != nil {
		// Encoding our own struct can only fail on unsupported types,
		// which ChatChunk never contains; surfacing as an empty content
		// frame would lose data silently, so this path is unreachable in
		// practice and left unhandled rather than papered over.
		panic(fmt.Sprintf("dialect: encode chunk: %v", err))
	}
	var out bytes.Buffer
	out.WriteString("data: ")
	out.Write(body)
	out.WriteString("\n\n")
	return Frame(out.Bytes())
}
