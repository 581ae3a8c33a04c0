package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/dedup"
	"github.com/outpost-run/tiermesh/internal/keys"
	"github.com/outpost-run/tiermesh/internal/provider"
	"github.com/outpost-run/tiermesh/internal/ratelimit"
	"github.com/outpost-run/tiermesh/internal/registry"
	"github.com/outpost-run/tiermesh/internal/selector"
	"github.com/outpost-run/tiermesh/internal/session"
)

func testServer(t *testing.T, upstream *httptest.Server) *Server {
	t.Helper()
	reg, err := registry.New([]registry.Model{
		{ID: "openai/gpt-4o-mini", ProviderPrefix: "openai", NativeDialect: registry.DialectA, ContextWindow: 128000, InputPrice: 1, OutputPrice: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	tables := selector.Tables{
		Tiers: map[classifier.Tier]selector.TierConfig{
			classifier.Simple: {Primary: "openai/gpt-4o-mini"},
		},
	}

	baseURL := "http://example.invalid"
	if upstream != nil {
		baseURL = upstream.URL
	}
	kr := keys.New(reg, keys.ProviderKeys{
		Direct: map[string]keys.ProviderKey{"openai": {APIKey: "sk-test", BaseURL: baseURL}},
	})

	return New(Config{}, Deps{
		Registry:   reg,
		Keys:       kr,
		Selector:   selector.New(tables),
		Dedup:      dedup.New(time.Minute, 100),
		Sessions:   session.New(time.Minute, 100),
		RateLimits: ratelimit.New(time.Minute),
		Transport:  provider.NewHTTPTransport(nil),
		ScoringCfg: classifier.DefaultScoringConfig(),
	})
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t, nil)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["modelCount"].(float64) != 1 {
		t.Errorf("modelCount = %v, want 1", body["modelCount"])
	}
}

func TestHandleModels_IncludesAuto(t *testing.T) {
	s := testServer(t, nil)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Data []struct{ ID string } `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	foundAuto, foundModel := false, false
	for _, d := range body.Data {
		if d.ID == registry.AutoModelID {
			foundAuto = true
		}
		if d.ID == "openai/gpt-4o-mini" {
			foundModel = true
		}
	}
	if !foundAuto || !foundModel {
		t.Errorf("data = %+v, want auto and openai/gpt-4o-mini present", body.Data)
	}
}

func TestHandlePassthrough_RequiresModelParam(t *testing.T) {
	s := testServer(t, nil)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without a model query param", w.Code)
	}
}

func TestHandlePassthrough_ForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("upstream path = %s, want /v1/embeddings", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"result":"ok"}`))
	}))
	defer upstream.Close()

	s := testServer(t, upstream)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings?model=openai/gpt-4o-mini", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"result":"ok"}` {
		t.Errorf("body = %s, want upstream response forwarded verbatim", w.Body.String())
	}
}

func TestHandleNotFound(t *testing.T) {
	s := testServer(t, nil)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWrapAuth_RejectsMissingToken(t *testing.T) {
	s := testServer(t, nil)
	s.cfg.AuthToken = "secret"
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a token", w.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	w2 := httptest.NewRecorder()
	mux.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with a valid token", w2.Code)
	}
}

func TestHandleHealth_NeverRequiresAuth(t *testing.T) {
	s := testServer(t, nil)
	s.cfg.AuthToken = "secret"
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for /health without a token", w.Code)
	}
}
