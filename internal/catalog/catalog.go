// Package catalog implements the Gateway-Catalog Resolver (C10): on start
// and on a TTL, fetch the aggregator gateway's model list and build a local
// id → gateway id map.
//
// Grounded on internal/llm/openrouter.go's normalizeOpenRouterModel (the
// id-shape this package's suffix-match generalizes) and on
// internal/agents/registry.go's pattern for a background-refreshed shared
// value, adapted here to an atomic.Pointer swap per SPEC_FULL.md §5 instead
// of a mutex, since readers vastly outnumber the single periodic writer.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTTL is the default refresh interval (spec.md §4.9).
const DefaultTTL = time.Hour

// gatewayModel is one entry of the aggregator's model-list response.
type gatewayModel struct {
	ID string `json:"id"`
}

type gatewayModelList struct {
	Data []gatewayModel `json:"data"`
}

// idMap is the immutable snapshot readers see; a refresh builds a new one
// and swaps the pointer.
type idMap struct {
	localToGateway map[string]string
}

// Resolver fetches and caches the gateway's model catalog.
type Resolver struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	ttl        time.Duration

	current      atomic.Pointer[idMap]
	lastFetch    atomic.Int64 // unix nanos
	localIDsHint []string
}

// New builds a Resolver. ttl<=0 uses DefaultTTL.
func New(baseURL, apiKey string, httpClient *http.Client, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	r := &Resolver{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient, ttl: ttl}
	r.current.Store(&idMap{localToGateway: map[string]string{}})
	return r
}

// Resolve maps a local model id to the gateway's id for it. Unmapped ids
// pass through unchanged, per spec.md §4.9 ("the gateway will 4xx,
// triggering fallback").
func (r *Resolver) Resolve(localID string) string {
	m := r.current.Load()
	if gw, ok := m.localToGateway[localID]; ok {
		return gw
	}
	return localID
}

// EnsureFresh fetches the gateway's catalog if it has never been fetched or
// the TTL has elapsed. Safe to call on every request; it is a no-op when
// the cache is fresh.
func (r *Resolver) EnsureFresh(ctx context.Context) error {
	last := r.lastFetch.Load()
	if last != 0 && time.Since(time.Unix(0, last)) < r.ttl {
		return nil
	}
	return r.Refresh(ctx)
}

// Refresh unconditionally re-fetches the gateway's catalog and swaps in a
// new id map.
func (r *Resolver) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog: fetch returned status %d", resp.StatusCode)
	}

	var list gatewayModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("catalog: decode: %w", err)
	}

	gatewayIDs := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		gatewayIDs = append(gatewayIDs, m.ID)
	}

	r.lastFetch.Store(time.Now().UnixNano())
	r.current.Store(buildIDMapFromLocals(r.localIDsHint, gatewayIDs))
	return nil
}

// SetLocalIDs tells the Resolver which local model ids to try mapping
// against the gateway catalog on the next Refresh.
func (r *Resolver) SetLocalIDs(ids []string) {
	r.localIDsHint = ids
}

func buildIDMapFromLocals(localIDs, gatewayIDs []string) *idMap {
	m := &idMap{localToGateway: make(map[string]string, len(localIDs))}
	for _, local := range localIDs {
		if gw, ok := matchGatewayID(local, gatewayIDs); ok {
			m.localToGateway[local] = gw
		}
	}
	return m
}

// matchGatewayID implements spec.md §4.9's (a) exact id match or (b)
// name-suffix match (strip "<prefix>/").
func matchGatewayID(local string, gatewayIDs []string) (string, bool) {
	for _, gw := range gatewayIDs {
		if gw == local {
			return gw, true
		}
	}
	_, localName, hasPrefix := strings.Cut(local, "/")
	if !hasPrefix {
		localName = local
	}
	for _, gw := range gatewayIDs {
		if strings.HasSuffix(gw, "/"+localName) || gw == localName {
			return gw, true
		}
	}
	return "", false
}
