// Package dialect implements the Dialect Adapter (C5): pure translation
// functions between the OpenAI-compatible chat dialect (A), Anthropic's
// "messages" dialect (B), and Google's streamed generate-content dialect
// (C).
//
// Grounded on internal/llm/anthropic.go (dialect B request/response shape,
// system-message extraction, hand-rolled SSE line reader) and
// internal/llm/openrouter.go (dialect A passthrough, model-name
// normalization). Per spec.md §9 ("inline body rewriting" → pure
// functions), nothing here performs I/O or recovers from partial state:
// every exported function is (bytes in, bytes out, error), and streaming
// state lives in the explicit FrameTranslator type rather than provider
// methods.
package dialect

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/outpost-run/tiermesh/internal/chatproto"
	"github.com/outpost-run/tiermesh/internal/registry"
)

// Dialect re-exports registry.Dialect so callers only need one import for
// the A/B/C constants.
type Dialect = registry.Dialect

const (
	A = registry.DialectA
	B = registry.DialectB
	C = registry.DialectC
)

// remapRole implements spec.md §4.3's "remaps nonstandard roles" rule.
// Unrecognized roles collapse to "user".
func remapRole(role string) string {
	switch role {
	case "developer":
		return "system"
	case "model":
		return "assistant"
	case "system", "user", "assistant", "tool":
		return role
	default:
		return "user"
	}
}

var toolCallIDDisallowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeToolCallID replaces every character outside [A-Za-z0-9_-] with
// "_", required by at least one dialect's strict validator (spec.md §4.3).
func SanitizeToolCallID(id string) string {
	return toolCallIDDisallowed.ReplaceAllString(id, "_")
}

// TranslateRequest rewrites an inbound dialect-A request body for dispatch
// to a provider speaking `to`, addressing it as targetModelID (the
// provider-native model name, already stripped of its registry prefix by
// the caller). The input body is never mutated in place; a new byte slice
// is always returned.
func TranslateRequest(body []byte, to Dialect, targetModelID string) ([]byte, error) {
	var req chatproto.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("dialect: decode inbound request: %w", err)
	}

	normalizeMessages(&req, to)

	switch to {
	case A:
		return translateAToA(req, targetModelID)
	case B:
		return translateAToB(req, targetModelID)
	case C:
		return translateAToC(req, targetModelID)
	default:
		return nil, fmt.Errorf("dialect: unknown target dialect %q", to)
	}
}

// normalizeMessages applies the role remap, tool-call id sanitization, the
// thinking/reasoning_content guarantee, and (for dialect C) the
// leading-user-message guarantee, in place on req.
func normalizeMessages(req *chatproto.ChatRequest, to Dialect) {
	for i := range req.Messages {
		m := &req.Messages[i]
		m.Role = remapRole(m.Role)
		if m.ToolCallID != "" {
			m.ToolCallID = SanitizeToolCallID(m.ToolCallID)
		}
		for j := range m.ToolCalls {
			m.ToolCalls[j].ID = SanitizeToolCallID(m.ToolCalls[j].ID)
		}
		// spec.md §4.3: "when thinking is set on an assistant message
		// carrying tool calls, ensures a reasoning_content field exists
		// (even if empty)".
		if m.Role == "assistant" && len(m.ToolCalls) > 0 && m.Thinking && m.ReasoningContent == nil {
			empty := ""
			m.ReasoningContent = &empty
		}
	}

	if to == C {
		firstNonSystem := -1
		for i, m := range req.Messages {
			if m.Role != "system" {
				firstNonSystem = i
				break
			}
		}
		if firstNonSystem == -1 || req.Messages[firstNonSystem].Role != "user" {
			insertAt := firstNonSystem
			if insertAt == -1 {
				insertAt = len(req.Messages)
			}
			synthetic := chatproto.Message{Role: "user", Content: "(continuing conversation)"}
			req.Messages = append(req.Messages, chatproto.Message{})
			copy(req.Messages[insertAt+1:], req.Messages[insertAt:])
			req.Messages[insertAt] = synthetic
		}
	}
}

// translateAToA is the passthrough case: only the model field changes,
// rewritten to the provider-native id (spec.md §4.3 "A → A").
func translateAToA(req chatproto.ChatRequest, targetModelID string) ([]byte, error) {
	req.Model = targetModelID
	out, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("dialect: encode A request: %w", err)
	}
	return out, nil
}

// messagesRequest is dialect B's wire shape (Anthropic "messages").
type messagesRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
	Messages  []messagesMessage `json:"messages"`
	Stream    bool              `json:"stream,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const defaultMaxTokens = 4096

// translateAToB extracts consecutive system-role messages into a top-level
// system string, coerces the remainder to alternating user/assistant, and
// defaults max_tokens if absent (spec.md §4.3 "A → B").
func translateAToB(req chatproto.ChatRequest, targetModelID string) ([]byte, error) {
	var system strings.Builder
	var messages []messagesMessage
	for _, m := range req.Messages {
		if m.Role == "system" {
			if system.Len() > 0 {
				system.WriteByte('\n')
			}
			system.WriteString(m.Content)
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content += "\n" + m.Content
			continue
		}
		messages = append(messages, messagesMessage{Role: role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	out, err := json.Marshal(messagesRequest{
		Model:     targetModelID,
		MaxTokens: maxTokens,
		System:    system.String(),
		Messages:  messages,
		Stream:    req.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("dialect: encode B request: %w", err)
	}
	return out, nil
}

// generateContentRequest is dialect C's wire shape (Google generate-content).
type generateContentRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateContent struct {
	Role  string             `json:"role"`
	Parts []generateContentPart `json:"parts"`
}

type generateContentPart struct {
	Text string `json:"text"`
}

// translateAToC transforms each message to the provider's content-part
// tree; the stream flag is carried by the caller as an SSE query parameter,
// not the body, so it is not represented here (spec.md §4.3 "A → C").
// System-role messages are dropped: the body carries no systemInstruction.
func translateAToC(req chatproto.ChatRequest, targetModelID string) ([]byte, error) {
	_ = targetModelID // dialect C addresses the model via the URL path, not the body
	var contents []generateContent
	for _, m := range req.Messages {
		if m.Role == "system" {
			continue // not forwarded to dialect C
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, generateContent{
			Role:  role,
			Parts: []generateContentPart{{Text: m.Content}},
		})
	}
	out, err := json.Marshal(generateContentRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("dialect: encode C request: %w", err)
	}
	return out, nil
}

// stopReasonMap translates provider-specific stop reasons to dialect A's
// finish_reason vocabulary (spec.md §4.3 "end_turn → stop, others pass
// through").
var stopReasonMap = map[string]string{
	"end_turn": "stop",
}

func mapStopReason(reason string) string {
	if mapped, ok := stopReasonMap[reason]; ok {
		return mapped
	}
	return reason
}

// messagesResponse is dialect B's non-streaming response shape.
type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// TranslateResponseB wraps a non-streaming dialect-B completion into
// dialect A's ChatResponse shape (spec.md §4.3 "B → A").
func TranslateResponseB(body []byte) ([]byte, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dialect: decode B response: %w", err)
	}

	var content strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	out := chatproto.ChatResponse{
		ID:     resp.ID,
		Object: "chat.completion",
		Model:  resp.Model,
		Choices: []chatproto.Choice{{
			Index: 0,
			Message: chatproto.Message{
				Role:    "assistant",
				Content: StripThinking(content.String()),
			},
			FinishReason: mapStopReason(resp.StopReason),
		}},
		Usage: chatproto.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("dialect: encode A response: %w", err)
	}
	return encoded, nil
}
