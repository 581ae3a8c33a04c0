package proxy

import "strings"

// retryableStatuses is the status-code set from spec.md §4.4. Grounded
// directly on other_examples/1f5465ed_jbctechsolutions-sr-router's
// isRetryableStatus test table ({401,403,429,500,502,503}→true plus the
// spec's additional {400,402,504}).
var retryableStatuses = map[int]bool{
	400: true, 401: true, 402: true, 403: true, 429: true,
	500: true, 502: true, 503: true, 504: true,
}

// errorClassPatterns are the documented substrings spec.md §4.4 calls
// "billing/quota/rate-limit/capacity/auth-invalid/model-unavailable/
// overloaded". Kept as data per spec.md §9 ("escape hatches via
// error-message string matching" → "keep the patterns as data, not code,
// so they can be extended").
var errorClassPatterns = []string{
	"insufficient_quota", "billing", "quota",
	"rate limit", "rate_limit", "too many requests",
	"capacity", "overloaded", "over capacity",
	"invalid api key", "invalid_api_key", "unauthorized", "authentication",
	"model_not_found", "model not found", "does not exist", "decommissioned",
}

// IsRetryable reports whether an upstream response should trigger
// FALLBACK_NEXT: its status is in the retryable set, and either the status
// is >= 500 or the body matches one of errorClassPatterns (spec.md §4.4).
func IsRetryable(status int, body []byte) bool {
	if !retryableStatuses[status] {
		return false
	}
	if status >= 500 {
		return true
	}
	lower := strings.ToLower(string(body))
	for _, pattern := range errorClassPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// ErrorKind names the taxonomy in spec.md §7.
type ErrorKind string

const (
	ErrConfiguration ErrorKind = "no_provider_configured"
	ErrBadUpstream    ErrorKind = "bad_upstream"
	ErrTimeout        ErrorKind = "upstream_timeout"
)
