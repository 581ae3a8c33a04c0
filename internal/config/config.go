// Package config loads tiermesh's runtime configuration from the process
// environment.
//
// Grounded on the teacher's internal/config/config.go: the same
// intFromEnv/durationMsFromEnv/strFromEnv/floatFromEnv helper shape, carried
// forward unchanged, with the field set replaced for this proxy's domain
// (per-provider credentials, dedup/session/rate-limit tunables, circuit
// breaker config) instead of the teacher's single-provider-plus-fallbacks
// model.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/outpost-run/tiermesh/internal/keys"
)

// Config holds every tunable the proxy needs at startup.
type Config struct {
	Port int

	RequestTimeout      time.Duration
	HeartbeatInterval   time.Duration
	MaxFallbackAttempts int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	AuthToken      string
	AllowedOrigins []string

	Keys keys.ProviderKeys

	DailyBudgetUSD   float64
	MonthlyBudgetUSD float64

	RateLimitCooldown time.Duration
	SessionTTL        time.Duration
	DedupTTL          time.Duration

	CircuitFailureThreshold int
	CircuitResetTimeout     time.Duration

	GatewayCatalogTTL time.Duration
}

// FromEnv loads Config from the process environment, falling back to
// spec.md's documented defaults wherever a variable is unset or invalid.
func FromEnv() Config {
	return Config{
		Port: intFromEnv("TIERMESH_PORT", 8080),

		RequestTimeout:      durationMsFromEnv("REQUEST_TIMEOUT_MS", 180_000),
		HeartbeatInterval:   durationMsFromEnv("HEARTBEAT_INTERVAL_MS", 2_000),
		MaxFallbackAttempts: intFromEnv("MAX_FALLBACK_ATTEMPTS", 3),

		ReadTimeout:  durationMsFromEnv("HTTP_READ_TIMEOUT_MS", 30_000),
		WriteTimeout: durationMsFromEnv("HTTP_WRITE_TIMEOUT_MS", 200_000), // longer: covers streaming
		IdleTimeout:  durationMsFromEnv("HTTP_IDLE_TIMEOUT_MS", 60_000),

		AuthToken:      os.Getenv("TIERMESH_AUTH_TOKEN"),
		AllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),

		Keys: providerKeysFromEnv(),

		DailyBudgetUSD:   floatFromEnv("TIERMESH_DAILY_BUDGET_USD", 50.0),
		MonthlyBudgetUSD: floatFromEnv("TIERMESH_MONTHLY_BUDGET_USD", 500.0),

		RateLimitCooldown: durationMsFromEnv("RATE_LIMIT_COOLDOWN_MS", 60_000),
		SessionTTL:        durationMsFromEnv("SESSION_TTL_MS", 30*60_000),
		DedupTTL:          durationMsFromEnv("DEDUP_TTL_MS", 30_000),

		CircuitFailureThreshold: intFromEnv("CIRCUIT_FAILURE_THRESHOLD", 3),
		CircuitResetTimeout:     durationMsFromEnv("CIRCUIT_RESET_TIME_MS", 60_000),

		GatewayCatalogTTL: durationMsFromEnv("GATEWAY_CATALOG_TTL_MS", 3_600_000),
	}
}

// providerKeysFromEnv reads one direct credential per supported provider
// (openai, anthropic, google, mistral) plus a single aggregator-gateway
// credential (spec.md §4.8's two
// credential classes).
func providerKeysFromEnv() keys.ProviderKeys {
	direct := make(map[string]keys.ProviderKey)
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		direct["openai"] = keys.ProviderKey{APIKey: k, BaseURL: strFromEnv("OPENAI_BASE_URL", "https://api.openai.com")}
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		direct["anthropic"] = keys.ProviderKey{APIKey: k, BaseURL: strFromEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com")}
	}
	if k := os.Getenv("GOOGLE_API_KEY"); k != "" {
		direct["google"] = keys.ProviderKey{APIKey: k, BaseURL: strFromEnv("GOOGLE_BASE_URL", "https://generativelanguage.googleapis.com")}
	}
	if k := os.Getenv("MISTRAL_API_KEY"); k != "" {
		direct["mistral"] = keys.ProviderKey{APIKey: k, BaseURL: strFromEnv("MISTRAL_BASE_URL", "https://api.mistral.ai")}
	}

	var gateway *keys.GatewayKey
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		gateway = &keys.GatewayKey{APIKey: k, BaseURL: strFromEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")}
	}

	return keys.ProviderKeys{Direct: direct, Gateway: gateway}
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("config: invalid int for %s=%s, using default %d", key, v, def)
	}
	return def
}

func durationMsFromEnv(key string, defMs int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Millisecond
		}
		log.Printf("config: invalid duration for %s=%s, using default %dms", key, v, defMs)
	}
	return time.Duration(defMs) * time.Millisecond
}

func strFromEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: invalid float for %s=%s, using default %f", key, v, def)
	}
	return def
}
