package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation for the proxy server,
// grounded on internal/llm/cloud_router_metrics.go's factory/WithLabelValues
// shape, adapted to this proxy's endpoint and tier vocabulary.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	costUSD         *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	dedupHits       *prometheus.CounterVec
}

// NewMetrics registers the proxy's metrics against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiermesh_requests_total",
			Help: "Total chat-completion requests by tier, model, and status",
		}, []string{"tier", "model", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tiermesh_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"tier", "model"}),
		costUSD: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiermesh_cost_usd_total",
			Help: "Total estimated cost in USD by model",
		}, []string{"model"}),
		tokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiermesh_tokens_total",
			Help: "Total tokens by type and model",
		}, []string{"type", "model"}),
		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiermesh_fallbacks_total",
			Help: "Total fallback transitions by reason",
		}, []string{"reason"}),
		dedupHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tiermesh_dedup_hits_total",
			Help: "Total requests served from the dedup store by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) recordRequest(tier, model, status string, durationSec float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(tier, model, status).Inc()
	if durationSec > 0 {
		m.requestDuration.WithLabelValues(tier, model).Observe(durationSec)
	}
}

func (m *Metrics) recordCost(model string, usd float64) {
	if m == nil {
		return
	}
	m.costUSD.WithLabelValues(model).Add(usd)
}

func (m *Metrics) recordTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues("prompt", model).Add(float64(prompt))
	m.tokensTotal.WithLabelValues("completion", model).Add(float64(completion))
}

func (m *Metrics) recordFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordDedup(kind string) {
	if m == nil {
		return
	}
	m.dedupHits.WithLabelValues(kind).Inc()
}
