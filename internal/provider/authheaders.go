package provider

import (
	"net/http"

	"github.com/outpost-run/tiermesh/internal/keys"
	"github.com/outpost-run/tiermesh/internal/registry"
)

// GatewayClientHeader is the aggregator gateway's client-identification
// header, sent alongside its bearer token.
const GatewayClientHeader = "X-Title"

// GatewayClientName identifies this proxy to the aggregator gateway.
const GatewayClientName = "tiermesh"

// AuthHeaders builds the authorization headers for one upstream dispatch,
// per spec.md §4.3:
//   - dialect A via gateway: Authorization: Bearer <key> + gateway client id
//   - dialect B direct: x-api-key: <key>, anthropic-version: 2023-06-01
//   - dialect C direct: x-goog-api-key: <key>
//   - dialect A direct: Authorization: Bearer <key>
func AuthHeaders(dialect registry.Dialect, access keys.Access) http.Header {
	h := http.Header{}
	switch {
	case access.ViaGateway:
		h.Set("Authorization", "Bearer "+access.APIKey)
		h.Set(GatewayClientHeader, GatewayClientName)
	case dialect == registry.DialectB:
		h.Set("x-api-key", access.APIKey)
		h.Set("anthropic-version", "2023-06-01")
	case dialect == registry.DialectC:
		h.Set("x-goog-api-key", access.APIKey)
	default:
		h.Set("Authorization", "Bearer "+access.APIKey)
	}
	return h
}
