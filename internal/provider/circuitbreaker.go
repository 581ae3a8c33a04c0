package provider

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState mirrors the three-state model in internal/llm/circuit_breaker.go.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// ErrCircuitOpen is returned by Dispatch while the breaker is open.
var ErrCircuitOpen = errors.New("provider: circuit breaker is open")

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// CircuitBreaker wraps a Transport with the teacher's three-state
// closed/open/half-open pattern (internal/llm/circuit_breaker.go), adapted
// from wrapping a Provider to wrapping a Transport. This is the enrichment
// SPEC_FULL.md documents: a model whose circuit is open is treated by the
// Selector's fallback filter as "not currently available", the same way a
// rate-limited model is deprioritized.
type CircuitBreaker struct {
	transport        Transport
	failureThreshold int
	resetTimeout     time.Duration

	mu            sync.RWMutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	successStreak int
}

// NewCircuitBreaker wraps transport. FailureThreshold<=0 defaults to 3;
// ResetTimeout<=0 defaults to 60s.
func NewCircuitBreaker(transport Transport, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		transport:        transport,
		failureThreshold: cfg.FailureThreshold,
		resetTimeout:     cfg.ResetTimeout,
		state:            CircuitClosed,
	}
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Available reports whether the breaker currently permits a dispatch,
// without actually performing one. Used by the Selector's fallback-
// candidate filter (SPEC_FULL.md §4.4 circuit-breaker enrichment).
func (cb *CircuitBreaker) Available() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	if cb.state != CircuitOpen {
		return true
	}
	return time.Since(cb.lastFailure) > cb.resetTimeout
}

// Dispatch runs req through the wrapped Transport, gated by circuit state.
// A 5xx or transport-level error counts as a failure; anything else
// (including upstream 4xx, which the proxy's own fallback logic handles)
// counts as success for circuit-state purposes — the breaker only guards
// against a model that is unconditionally erroring.
func (cb *CircuitBreaker) Dispatch(ctx context.Context, req Request) (Response, error) {
	if err := cb.allowRequest(); err != nil {
		return Response{}, err
	}

	resp, err := cb.transport.Dispatch(ctx, req)
	cb.recordResult(err == nil && resp.Status < 500)
	return resp, err
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.successStreak = 0
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordResult(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !ok {
		cb.failures++
		cb.lastFailure = time.Now()
		cb.successStreak = 0
		if cb.failures >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
		return
	}

	cb.successStreak++
	if cb.state == CircuitHalfOpen && cb.successStreak >= 2 {
		cb.state = CircuitClosed
		cb.failures = 0
	}
}

// Reset forces the breaker back to closed, clearing failure history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successStreak = 0
}
