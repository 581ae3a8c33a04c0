package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/outpost-run/tiermesh/internal/chatproto"
	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/dedup"
	"github.com/outpost-run/tiermesh/internal/dialect"
	"github.com/outpost-run/tiermesh/internal/provider"
	"github.com/outpost-run/tiermesh/internal/registry"
	"github.com/outpost-run/tiermesh/internal/session"
)

// handleChatCompletions implements the Proxy Server's full request
// lifecycle (spec.md §4.4): RECEIVE, CLASSIFY, RESOLVE_KEY, DEDUP_CHECK,
// DISPATCH, STREAM or COMPLETE, FALLBACK_NEXT.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := requestID(r)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "unreadable body"))
		return
	}

	var req chatproto.ChatRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "invalid JSON body"))
		return
	}

	sessionID := session.GetSessionID(r.Header, r.Cookies())
	agentic := isAgentic(req)

	candidates, tier, pinned := s.resolveCandidates(req, sessionID, agentic)
	if len(candidates) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(string(ErrConfiguration), "no reachable model for this request"))
		return
	}

	if sessionID != "" {
		if !pinned {
			s.deps.Sessions.SetSession(sessionID, candidates[0], tier.String())
		}
		if !s.deps.Sessions.Allow(sessionID) {
			writeJSON(w, http.StatusTooManyRequests, errorBody("rate_limited", "session is issuing requests too quickly"))
			return
		}
	}

	maxAttempts := s.cfg.MaxFallbackAttempts
	if maxAttempts > len(candidates) {
		maxAttempts = len(candidates)
	}
	estimatedInputTokens := req.TotalPromptTokens()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		modelID := candidates[attempt]

		m, ok := s.deps.Registry.Get(modelID)
		if !ok {
			continue
		}
		if !m.FitsBudget(estimatedInputTokens, req.MaxTokens) {
			lastErr = fmt.Errorf("proxy: model %s context window too small for an estimated %d prompt tokens", modelID, estimatedInputTokens)
			continue
		}
		access := s.deps.Keys.Resolve(modelID)
		if access.Unreachable {
			continue
		}
		if !s.circuitAvailable(modelID) || s.deps.RateLimits.IsRateLimited(modelID) {
			continue
		}

		nativeName := m.NativeName()
		if access.ViaGateway && s.deps.Catalog != nil {
			_ = s.deps.Catalog.EnsureFresh(ctx)
			nativeName = s.deps.Catalog.Resolve(m.ID)
		}

		translated, err := dialect.TranslateRequest(rawBody, m.NativeDialect, nativeName)
		if err != nil {
			lastErr = err
			continue
		}

		key := dedup.Key(translated)

		if cached, ok := s.deps.Dedup.GetCached(key); ok {
			s.metrics.recordDedup("cached")
			writeDedupResponse(w, cached)
			return
		}
		if inflight, ok := s.deps.Dedup.GetInflight(key); ok {
			s.metrics.recordDedup("coalesced")
			select {
			case resp, ok := <-inflight:
				if !ok {
					if cached, hit := s.deps.Dedup.GetCached(key); hit {
						writeDedupResponse(w, cached)
						return
					}
					lastErr = fmt.Errorf("proxy: in-flight duplicate was dropped")
					continue
				}
				writeDedupResponse(w, resp)
				return
			case <-ctx.Done():
				writeJSON(w, http.StatusGatewayTimeout, errorBody(string(ErrTimeout), "timed out waiting for a duplicate in flight"))
				return
			}
		}

		s.deps.Dedup.MarkInflight(key)

		cb := s.breakerFor(modelID)
		resp, err := cb.Dispatch(ctx, provider.Request{
			Dialect: m.NativeDialect,
			Access:  access,
			Path:    upstreamPath(m.NativeDialect, nativeName, req.Stream),
			Body:    translated,
			Stream:  req.Stream,
		})
		if err != nil {
			s.deps.Dedup.RemoveInflight(key)
			s.metrics.recordFallback("transport_error")
			lastErr = err
			continue
		}

		if resp.Status >= 400 {
			errBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			s.deps.Dedup.RemoveInflight(key)

			if resp.Status == http.StatusTooManyRequests {
				s.deps.RateLimits.MarkRateLimited(modelID)
			}
			if IsRetryable(resp.Status, errBody) && attempt < maxAttempts-1 {
				s.metrics.recordFallback("upstream_error")
				lastErr = fmt.Errorf("proxy: upstream %s returned %d", modelID, resp.Status)
				continue
			}

			s.metrics.recordRequest(tier.String(), modelID, "error", time.Since(start).Seconds())
			writeJSON(w, resp.Status, errorBody(string(ErrBadUpstream), string(errBody)))
			return
		}

		if req.Stream {
			s.streamChatResponse(ctx, w, key, m, tier, rid, resp, start)
		} else {
			s.completeChatResponse(w, key, m, tier, resp, start)
		}
		return
	}

	writeJSON(w, http.StatusBadGateway, errorBody(string(ErrBadUpstream), fmt.Sprintf("every candidate model failed: %v", lastErr)))
}

// resolveCandidates decides which models to try, in order, and the tier
// used for metrics and session pinning. pinned reports whether the list
// came from an existing session pin (so the caller should not overwrite it).
func (s *Server) resolveCandidates(req chatproto.ChatRequest, sessionID string, agentic bool) (candidates []string, tier classifier.Tier, pinned bool) {
	totalTokens := req.TotalPromptTokens()
	reachable := func(id string) bool {
		if !s.deps.Keys.Reachable(id) || s.deps.RateLimits.IsRateLimited(id) || !s.circuitAvailable(id) {
			return false
		}
		m, ok := s.deps.Registry.Get(id)
		if !ok {
			return false
		}
		return m.FitsBudget(totalTokens, req.MaxTokens)
	}

	if req.Model != "" && req.Model != registry.AutoModelID {
		return []string{req.Model}, classifier.Simple, false
	}

	if sessionID != "" {
		if entry, ok := s.deps.Sessions.GetSession(sessionID); ok && reachable(entry.Model) {
			return []string{entry.Model}, classifier.Simple, true
		}
	}

	userText := req.UserText()
	userTokens := chatproto.EstimateTokens(userText)
	result := classifier.Classify(userText, req.SystemText(), userTokens, totalTokens, s.deps.ScoringCfg)

	primary, fallback, ok := s.deps.Selector.Select(result.Tier, agentic, reachable)
	if !ok {
		return nil, result.Tier, false
	}
	return append([]string{primary}, fallback...), result.Tier, false
}

// upstreamPath returns the provider-native request path for a dialect,
// following spec.md §4.3's per-dialect addressing (A and B address the model
// in the body, C addresses it in the URL path and, on stream, switches verb
// and adds the alt=sse query parameter).
func upstreamPath(d registry.Dialect, nativeName string, stream bool) string {
	switch d {
	case registry.DialectB:
		return "/v1/messages"
	case registry.DialectC:
		action := "generateContent"
		if stream {
			action = "streamGenerateContent?alt=sse"
		}
		return "/v1beta/models/" + nativeName + ":" + action
	default:
		return "/v1/chat/completions"
	}
}

func writeDedupResponse(w http.ResponseWriter, resp dedup.Response) {
	for k, vv := range resp.Headers {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// completeChatResponse handles a non-streaming upstream reply: translate to
// dialect A, record cost/metrics, complete the dedup entry, and write the
// client response.
func (s *Server) completeChatResponse(w http.ResponseWriter, key string, m registry.Model, tier classifier.Tier, resp provider.Response, start time.Time) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.deps.Dedup.RemoveInflight(key)
		writeJSON(w, http.StatusBadGateway, errorBody(string(ErrBadUpstream), "failed reading upstream response"))
		return
	}

	translated := body
	if m.NativeDialect == registry.DialectB {
		if out, terr := dialect.TranslateResponseB(body); terr == nil {
			translated = out
		}
	}

	var parsed chatproto.ChatResponse
	_ = json.Unmarshal(translated, &parsed)
	if parsed.Model == "" {
		parsed.Model = m.ID
	}

	s.deps.Dedup.Complete(key, dedup.Response{
		Status:  http.StatusOK,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    translated,
	})

	spent := s.deps.Tracker.Track(m, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	s.metrics.recordCost(m.ID, spent)
	s.metrics.recordTokens(m.ID, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	s.metrics.recordRequest(tier.String(), m.ID, "ok", time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(translated)
}

// streamChatResponse pumps the upstream SSE body through a FrameTranslator
// to the client. On success it completes the dedup entry with the exact
// translated-frame bytes written to the client, so a concurrent duplicate
// waiting on the inflight channel (chat.go's DEDUP_CHECK) receives a
// byte-identical replay instead of a closed channel; on failure it removes
// the inflight entry so a waiter falls through to its own attempt rather
// than replaying a failed stream.
func (s *Server) streamChatResponse(ctx context.Context, w http.ResponseWriter, key string, m registry.Model, tier classifier.Tier, rid string, resp provider.Response, start time.Time) {
	defer resp.Body.Close()

	translator := dialect.NewFrameTranslator(m.NativeDialect, rid, m.ID)
	payload, err := streamSSE(ctx, w, resp.Body, translator, s.cfg.HeartbeatInterval)
	if err == nil {
		s.deps.Dedup.Complete(key, dedup.Response{
			Status:  http.StatusOK,
			Headers: map[string][]string{"Content-Type": {"text/event-stream"}},
			Body:    payload,
		})
	} else {
		s.deps.Dedup.RemoveInflight(key)
	}

	status := "ok"
	if err != nil {
		status = "stream_error"
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			writeStreamError(w, err)
		}
		logJSON(map[string]any{
			"event": "stream_error", "request_id": rid, "model": m.ID, "error": err.Error(),
		})
	}
	s.metrics.recordRequest(tier.String(), m.ID, status, time.Since(start).Seconds())
}

// writeStreamError ends an already-started SSE response with a single error
// frame followed by the [DONE] terminator, per spec.md §4.4/§7: once
// headers are flushed, a mid-stream failure surfaces as a frame, never a
// changed status code.
func writeStreamError(w http.ResponseWriter, err error) {
	_, _ = w.Write(dialect.ErrorFrame(err.Error()))
	_, _ = w.Write(dialect.DoneFrame())
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
