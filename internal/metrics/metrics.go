// ABOUTME: Prometheus collectors for the gateway's request pipeline.
// ABOUTME: Private registry; exposed via promhttp when metrics are enabled.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the gateway's collectors on a private registry so
// tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	ToolCallsTotal   *prometheus.CounterVec
	ResolutionsTotal *prometheus.CounterVec
	PromptWaitsTotal *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
}

// New creates and registers the gateway collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Inbound requests by transport.",
			},
			[]string{"transport"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_tool_calls_total",
				Help: "Tool invocations by tool name and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_credential_resolutions_total",
				Help: "Credential resolutions by source tier and outcome.",
			},
			[]string{"tier", "outcome"},
		),
		PromptWaitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_prompt_waits_total",
				Help: "Interactive prompt waits by outcome.",
			},
			[]string{"outcome"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_tool_call_duration_seconds",
				Help:    "Tool invocation latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.ToolCallsTotal,
		m.ResolutionsTotal,
		m.PromptWaitsTotal,
		m.ToolCallDuration,
	)
	return m
}

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
