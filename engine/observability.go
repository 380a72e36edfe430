package engine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Metrics exposes Prometheus collectors for run/node execution, mirroring
// the attributes OTelEmitter records as span attributes (graph/emit/otel.go)
// but as counters/histograms for scraping rather than trace export.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
	NodeCostUSD    *prometheus.HistogramVec
	NodeTokensIn   *prometheus.CounterVec
	NodeTokensOut  *prometheus.CounterVec
	GateActions    *prometheus.CounterVec
}

// NewMetrics registers a fresh set of collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_runs_total",
			Help: "Total workflow runs by workflow name and terminal status.",
		}, []string{"workflow", "status"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentflow_node_duration_ms",
			Help:    "Node execution duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(50, 2, 12),
		}, []string{"workflow", "node"}),
		NodeCostUSD: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentflow_node_cost_usd",
			Help:    "Node LLM cost in USD.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 14),
		}, []string{"workflow", "node"}),
		NodeTokensIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_node_input_tokens_total",
			Help: "Total input tokens consumed per node.",
		}, []string{"workflow", "node"}),
		NodeTokensOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_node_output_tokens_total",
			Help: "Total output tokens produced per node.",
		}, []string{"workflow", "node"}),
		GateActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_gate_actions_total",
			Help: "Quality gate actions fired, by action kind.",
		}, []string{"workflow", "node", "action"}),
	}
	reg.MustRegister(m.RunsTotal, m.NodeDuration, m.NodeCostUSD, m.NodeTokensIn, m.NodeTokensOut, m.GateActions)
	return m
}

// startSpan opens a node span on tracer. When no tracer is configured it
// returns the span already in ctx (a no-op span if there is none), so
// callers never need a nil check before calling span methods.
func startSpan(ctx context.Context, tracer trace.Tracer, runID, nodeID string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, "node:"+nodeID, trace.WithAttributes(
		attribute.String("agentflow.run_id", runID),
		attribute.String("agentflow.node_id", nodeID),
	))
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
