// Package proxy implements the Proxy Server (C9): the HTTP front-end that
// orchestrates every other component (C1-C8, C10) for each request and
// emits SSE.
//
// Grounded on internal/http/server.go (route registration, CORS, per-
// request JSON logging, Prometheus wrapping, request-id generation) and
// internal/llm/multi_provider.go (the failover loop FALLBACK_NEXT
// generalizes).
package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outpost-run/tiermesh/internal/catalog"
	"github.com/outpost-run/tiermesh/internal/chatproto"
	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/cost"
	"github.com/outpost-run/tiermesh/internal/dedup"
	"github.com/outpost-run/tiermesh/internal/keys"
	"github.com/outpost-run/tiermesh/internal/provider"
	"github.com/outpost-run/tiermesh/internal/ratelimit"
	"github.com/outpost-run/tiermesh/internal/registry"
	"github.com/outpost-run/tiermesh/internal/selector"
	"github.com/outpost-run/tiermesh/internal/session"
)

// Config holds the proxy's tunables, all named directly in spec.md §5.
type Config struct {
	RequestTimeout      time.Duration // DEFAULT_REQUEST_TIMEOUT_MS = 180000
	HeartbeatInterval   time.Duration // 2s
	MaxFallbackAttempts int           // default 3
	AuthToken           string        // empty disables auth
	AllowedOrigins      []string
}

// Normalize fills zero-valued fields with spec.md's defaults.
func (c Config) Normalize() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 180 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 2 * time.Second
	}
	if c.MaxFallbackAttempts <= 0 {
		c.MaxFallbackAttempts = 3
	}
	return c
}

// Deps are the components the proxy orchestrates.
type Deps struct {
	Registry    *registry.Registry
	Keys        *keys.Resolver
	Selector    *selector.Selector
	Dedup       *dedup.Store
	Sessions    *session.Store
	RateLimits  *ratelimit.Map
	Catalog     *catalog.Resolver
	Tracker     *cost.Tracker
	History     *cost.History
	Transport   provider.Transport
	ScoringCfg  classifier.ScoringConfig
}

// Server is the proxy's HTTP front-end.
type Server struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	breakers map[string]*provider.CircuitBreaker

	promRegistry   *prometheus.Registry
	metrics        *Metrics
	allowedOrigins map[string]bool

	startTime time.Time
}

// New builds a Server.
func New(cfg Config, deps Deps) *Server {
	cfg = cfg.Normalize()
	promRegistry := prometheus.NewRegistry()

	origins := make(map[string]bool)
	for _, o := range cfg.AllowedOrigins {
		origins[o] = true
	}

	return &Server{
		cfg:            cfg,
		deps:           deps,
		breakers:       make(map[string]*provider.CircuitBreaker),
		promRegistry:   promRegistry,
		metrics:        NewMetrics(promRegistry),
		allowedOrigins: origins,
		startTime:      time.Now(),
	}
}

// RegisterRoutes attaches every endpoint from spec.md §6 to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrapCORS(s.handleHealth))
	mux.HandleFunc("/stats", s.wrapCORS(s.wrapAuth(s.handleStats)))
	mux.HandleFunc("/v1/models", s.wrapCORS(s.wrapAuth(s.handleModels)))
	mux.HandleFunc("/v1/chat/completions", s.wrapCORS(s.wrapAuth(s.handleChatCompletions)))
	mux.Handle("/metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/", s.wrapCORS(s.wrapAuth(s.handlePassthrough)))
	mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody("not_found", "no such route"))
}

func (s *Server) breakerFor(modelID string) *provider.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[modelID]; ok {
		return cb
	}
	cb := provider.NewCircuitBreaker(s.deps.Transport, provider.CircuitBreakerConfig{})
	s.breakers[modelID] = cb
	return cb
}

func (s *Server) circuitAvailable(modelID string) bool {
	s.mu.Lock()
	cb, ok := s.breakers[modelID]
	s.mu.Unlock()
	if !ok {
		return true
	}
	return cb.Available()
}

func (s *Server) wrapAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.cfg.AuthToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.AuthToken {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized", "invalid or missing token"))
			return
		}
		next(w, r)
	}
}

func (s *Server) wrapCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Id, X-Request-Session")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func requestID(r *http.Request) string {
	if v := r.Header.Get("X-Request-Id"); v != "" {
		return v
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return time.Now().Format("20060102150405.000000")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(code, message string) chatproto.ErrorBody {
	return chatproto.ErrorBody{Error: chatproto.ErrorDetail{Type: code, Code: code, Message: message}}
}

func logJSON(fields map[string]any) {
	b, err := json.Marshal(fields)
	if err != nil {
		log.Printf("log encode error: %v", err)
		return
	}
	log.Println(string(b))
}
