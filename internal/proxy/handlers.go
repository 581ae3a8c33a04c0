package proxy

import (
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/outpost-run/tiermesh/internal/keys"
	"github.com/outpost-run/tiermesh/internal/provider"
	"github.com/outpost-run/tiermesh/internal/registry"
)

// handleHealth serves /health synchronously, without touching the brain
// (spec.md §4.4 RECEIVE).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	configured := s.deps.Keys.ConfiguredProviders()
	sort.Strings(configured)

	accessible := make([]string, 0, len(configured))
	seen := make(map[string]bool)
	for _, m := range s.deps.Registry.List() {
		if s.deps.Keys.Reachable(m.ID) && !seen[m.ProviderPrefix] {
			seen[m.ProviderPrefix] = true
			accessible = append(accessible, m.ProviderPrefix)
		}
	}
	sort.Strings(accessible)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"configuredProviders": configured,
		"gatewayFallback":     s.deps.Catalog != nil,
		"accessibleProviders": accessible,
		"modelCount":          s.deps.Registry.Len(),
	})
}

// handleStats serves /stats?days=N from the in-process cost.History
// default; an external stats collaborator may be substituted by a
// different Deps.History implementation (spec.md §6: "delegated to
// external stats collaborator").
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := 1
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	since := time.Now().AddDate(0, 0, -days)

	var snapshots any
	if s.deps.History != nil {
		snapshots = s.deps.History.Since(since)
	}

	var status any
	if s.deps.Tracker != nil {
		status = s.deps.Tracker.Status()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"days":      days,
		"status":    status,
		"snapshots": snapshots,
	})
}

type modelListEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// handleModels serves /v1/models, filtered to the accessible set, with
// "auto" always present (spec.md §6).
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	data := []modelListEntry{{
		ID: registry.AutoModelID, Object: "model", Created: s.startTime.Unix(), OwnedBy: "tiermesh",
	}}
	for _, m := range s.deps.Registry.List() {
		if !s.deps.Keys.Reachable(m.ID) {
			continue
		}
		data = append(data, modelListEntry{
			ID: m.ID, Object: "model", Created: s.startTime.Unix(), OwnedBy: m.ProviderPrefix,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

// handlePassthrough forwards any other /v1/* request for the model named in
// the "model" query parameter, skipping classification (the caller names an
// explicit path/model, so there is no tier to infer). The request body and
// the upstream response are forwarded untranslated: no dialect translation
// to or from the model's native dialect is applied (see passthroughRequest).
func (s *Server) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/chat/completions" || r.URL.Path == "/v1/models" {
		s.handleNotFound(w, r)
		return
	}

	modelID := r.URL.Query().Get("model")
	if modelID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "model query parameter required for passthrough"))
		return
	}
	access := s.deps.Keys.Resolve(modelID)
	if access.Unreachable {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(string(ErrConfiguration), "no reachable provider for model"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", "unreadable body"))
		return
	}

	cb := s.breakerFor(modelID)
	resp, err := cb.Dispatch(r.Context(), passthroughRequest(access, r.URL.Path, body))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorBody(string(ErrBadUpstream), err.Error()))
		return
	}
	defer resp.Body.Close()

	upstreamBody, _ := io.ReadAll(resp.Body)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(upstreamBody)
}

// passthroughRequest builds an untranslated dialect-A dispatch: passthrough
// callers already name an exact provider path and are responsible for
// sending a body that provider understands.
func passthroughRequest(access keys.Access, path string, body []byte) provider.Request {
	return provider.Request{Dialect: registry.DialectA, Access: access, Path: path, Body: body, Stream: false}
}
