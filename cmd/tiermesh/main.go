// Command tiermesh runs the routing proxy: classify a chat-completion
// request's complexity, pick a model tier, translate between the three
// supported dialects, and forward the call upstream.
//
// Grounded on cmd/gateway/main.go's wiring shape (config.FromEnv, Prometheus
// registry, graceful shutdown), with this module's own flag surface and
// component graph (registry, keys, selector, dedup, session, ratelimit,
// catalog, cost).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/outpost-run/tiermesh/internal/catalog"
	"github.com/outpost-run/tiermesh/internal/classifier"
	"github.com/outpost-run/tiermesh/internal/config"
	"github.com/outpost-run/tiermesh/internal/cost"
	"github.com/outpost-run/tiermesh/internal/dedup"
	"github.com/outpost-run/tiermesh/internal/keys"
	"github.com/outpost-run/tiermesh/internal/provider"
	"github.com/outpost-run/tiermesh/internal/proxy"
	"github.com/outpost-run/tiermesh/internal/ratelimit"
	"github.com/outpost-run/tiermesh/internal/registry"
	"github.com/outpost-run/tiermesh/internal/selector"
	"github.com/outpost-run/tiermesh/internal/session"
)

const version = "0.1.0"

func main() {
	var (
		showVersion = flag.Bool("version", false, "print the version and exit")
		showHelp    = flag.Bool("help", false, "print usage and exit")
		port        = flag.Int("port", 0, "listen port (overrides TIERMESH_PORT)")
	)
	flag.BoolVar(showVersion, "v", false, "print the version and exit (shorthand)")
	flag.BoolVar(showHelp, "h", false, "print usage and exit (shorthand)")
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Println("tiermesh", version)
		os.Exit(0)
	}

	cfg := config.FromEnv()
	if *port != 0 {
		cfg.Port = *port
	}

	if len(cfg.Keys.Direct) == 0 && cfg.Keys.Gateway == nil {
		log.Fatal("no providers configured; set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY, MISTRAL_API_KEY, or OPENROUTER_API_KEY")
	}

	reg, err := registry.New(registry.Builtin())
	if err != nil {
		log.Fatalf("building model registry: %v", err)
	}

	tables := selector.Builtin()
	if err := tables.Validate(reg); err != nil {
		log.Fatalf("validating tier tables: %v", err)
	}

	keyResolver := keys.New(reg, cfg.Keys)
	sel := selector.New(tables)
	dedupStore := dedup.New(cfg.DedupTTL, dedup.DefaultMaxEntries)
	sessionStore := session.New(cfg.SessionTTL, session.DefaultMaxEntries)
	rateLimits := ratelimit.New(cfg.RateLimitCooldown)

	tracker := cost.NewTracker(cost.TrackerConfig{
		DailyBudgetUSD: cfg.DailyBudgetUSD, MonthlyBudgetUSD: cfg.MonthlyBudgetUSD,
	})
	history := cost.NewHistory(cost.HistoryConfig{Tracker: tracker})

	var catalogResolver *catalog.Resolver
	if cfg.Keys.Gateway != nil {
		catalogResolver = catalog.New(cfg.Keys.Gateway.BaseURL, cfg.Keys.Gateway.APIKey, nil, cfg.GatewayCatalogTTL)
		var ids []string
		for _, m := range reg.List() {
			ids = append(ids, m.ID)
		}
		catalogResolver.SetLocalIDs(ids)
		if err := catalogResolver.Refresh(context.Background()); err != nil {
			log.Printf("warning: initial gateway catalog refresh failed: %v", err)
		}
	}

	if direct, ok := cfg.Keys.Direct["openai"]; ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ids, err := provider.ProbeOpenAIModels(ctx, direct.APIKey, direct.BaseURL)
		cancel()
		if err != nil {
			log.Printf("warning: openai model probe failed: %v", err)
		} else {
			log.Printf("openai account exposes %d models", len(ids))
		}
	}

	httpTransport := provider.NewHTTPTransport(&http.Client{Timeout: cfg.RequestTimeout})

	srv := proxy.New(proxy.Config{
		RequestTimeout:      cfg.RequestTimeout,
		HeartbeatInterval:   cfg.HeartbeatInterval,
		MaxFallbackAttempts: cfg.MaxFallbackAttempts,
		AuthToken:           cfg.AuthToken,
		AllowedOrigins:      cfg.AllowedOrigins,
	}, proxy.Deps{
		Registry:   reg,
		Keys:       keyResolver,
		Selector:   sel,
		Dedup:      dedupStore,
		Sessions:   sessionStore,
		RateLimits: rateLimits,
		Catalog:    catalogResolver,
		Tracker:    tracker,
		History:    history,
		Transport:  httpTransport,
		ScoringCfg: classifier.DefaultScoringConfig(),
	})

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			history.RecordSnapshot()
		}
	}()

	httpServer := &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	listener, alreadyRunning, err := bindWithRetry(cfg.Port)
	if err != nil {
		log.Fatalf("binding listener: %v", err)
	}
	if alreadyRunning {
		log.Printf("tiermesh already running and healthy on :%d, exiting", cfg.Port)
		return
	}

	go func() {
		log.Printf("tiermesh listening on :%d (models=%d, gatewayFallback=%v)",
			cfg.Port, reg.Len(), catalogResolver != nil)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	log.Println("tiermesh stopped")
}

const (
	bindRetryAttempts  = 5
	bindRetryInterval  = time.Second
	healthProbeTimeout = 2 * time.Second
)

// bindWithRetry implements spec.md §5's Listen Bind contract: on
// EADDRINUSE, first probe the existing listener's /health; a
// {"status":"ok"} reply means another tiermesh is already serving this
// port, so the caller gets alreadyRunning=true and a nil listener (a
// no-op handle) instead of a second bind attempt. Otherwise it retries the
// same port up to bindRetryAttempts times at bindRetryInterval before
// giving up.
func bindWithRetry(port int) (ln net.Listener, alreadyRunning bool, err error) {
	addr := ":" + strconv.Itoa(port)
	for attempt := 0; attempt < bindRetryAttempts; attempt++ {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			return ln, false, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, false, err
		}
		if probeHealthy(port) {
			return nil, true, nil
		}
		if attempt < bindRetryAttempts-1 {
			log.Printf("port %d in use, retrying in %s (attempt %d/%d)", port, bindRetryInterval, attempt+1, bindRetryAttempts)
			time.Sleep(bindRetryInterval)
		}
	}
	return nil, false, fmt.Errorf("port %d still in use after %d attempts", port, bindRetryAttempts)
}

// probeHealthy reports whether a server already bound to port answers
// /health with {"status":"ok"}, per spec.md §5's Listen Bind contract.
func probeHealthy(port int) bool {
	client := http.Client{Timeout: healthProbeTimeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "ok"
}
