// Package engine builds and drives the linear workflow graph (C9, spec
// §4.9): resolve a declaration's edges into a topological plan, then run
// each node through node.Executor, persisting every transition through
// store.Store. Adapted from the teacher's graph.Engine/graph/scheduler.go,
// narrowed from their general concurrent/checkpointed machinery to the
// linear-only, no-replay contract v1.0 requires.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/node"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store"
)

// GateError reports that a FAIL-action gate fired during a run; the run is
// failed with this error as its recorded cause (spec §4.8 step 6).
type GateError struct {
	NodeID string
	Metric string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("gate failed on node %s: metric %s breached its threshold", e.NodeID, e.Metric)
}

// Options carries the per-run parameters that do not come from the
// declaration itself.
type Options struct {
	RunID       string // generated with uuid.NewString if empty
	ParentRunID string // restart linkage (spec §4.9 "Restart")

	// ConfigSnapshot is the source declaration document, verbatim, as read
	// from disk. Callers (cmd/agentflow, webhook, orchestrator) own the
	// raw bytes; the engine only persists them.
	ConfigSnapshot string

	AgentID        string
	ExperimentName string
	VariantName    string

	Tracer  trace.Tracer  // optional; no spans emitted if nil
	Metrics *Metrics      // optional; no counters recorded if nil
}

// Engine drives declarations to completion against a persistent run store.
type Engine struct {
	Store store.Store
	Node  *node.Executor
}

// New wires a ready-to-run Engine.
func New(st store.Store, exec *node.Executor) *Engine {
	return &Engine{Store: st, Node: exec}
}

// Execute runs d start to finish: creates the run record, drives every
// node in topological order, persists outputs and metrics as they happen,
// and returns the final record. The returned error, when non-nil, is also
// reflected in the record's Status/Error fields (both the record and the
// error are returned so callers can log without a second Get).
func (e *Engine) Execute(ctx context.Context, d *declaration.Declaration, builder *state.Builder, inputs map[string]any, opts Options) (store.RunRecord, error) {
	plan, err := BuildPlan(d)
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("build plan: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := time.Now()
	record := store.RunRecord{
		ID:             runID,
		WorkflowName:   plan.WorkflowName,
		Status:         store.StatusPending,
		ConfigSnapshot: opts.ConfigSnapshot,
		Inputs:         inputs,
		AgentID:        opts.AgentID,
		ParentRunID:    opts.ParentRunID,
		ExperimentName: opts.ExperimentName,
		VariantName:    opts.VariantName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Store.Create(ctx, record); err != nil {
		return record, fmt.Errorf("create run: %w", err)
	}
	if err := e.Store.UpdateStatus(ctx, runID, store.StatusRunning, ""); err != nil {
		return record, fmt.Errorf("mark run running: %w", err)
	}
	record.Status = store.StatusRunning

	current, err := builder.MakeState(inputs)
	if err != nil {
		return e.fail(ctx, record, "", err)
	}

	var (
		llmDefaults       *declaration.LLMRef
		executionDefaults *declaration.ExecutionDefaults
	)
	if d.Config != nil {
		llmDefaults = d.Config.LLMDefaults
		executionDefaults = d.Config.ExecutionDefaults
	}

	start := time.Now()
	costs := node.NewCostTracker()
	blockDeploy := false

	for _, spec := range plan.Nodes {
		if err := ctx.Err(); err != nil {
			return e.cancel(ctx, record)
		}

		spanCtx, span := startSpan(ctx, opts.Tracer, runID, spec.ID)
		nodeStart := time.Now()

		next, metrics, actions, err := e.Node.Execute(spanCtx, spec, builder, current, llmDefaults, executionDefaults)
		recordSpanError(span, err)
		span.End()

		if opts.Metrics != nil {
			opts.Metrics.NodeDuration.WithLabelValues(plan.WorkflowName, spec.ID).Observe(float64(time.Since(nodeStart).Milliseconds()))
			opts.Metrics.NodeCostUSD.WithLabelValues(plan.WorkflowName, spec.ID).Observe(metrics.CostUSD)
			opts.Metrics.NodeTokensIn.WithLabelValues(plan.WorkflowName, spec.ID).Add(float64(metrics.InputTokens))
			opts.Metrics.NodeTokensOut.WithLabelValues(plan.WorkflowName, spec.ID).Add(float64(metrics.OutputTokens))
		}

		if err != nil {
			return e.fail(ctx, record, spec.ID, err)
		}

		costs.Record(spec.ID, metrics, nodeStart)

		delta := make(map[string]any, len(spec.Outputs))
		for _, field := range spec.Outputs {
			delta[field] = next[field]
		}
		if err := e.Store.AppendOutputs(ctx, runID, delta); err != nil {
			return e.fail(ctx, record, spec.ID, fmt.Errorf("persist node outputs: %w", err))
		}

		var failAction *node.GateAction
		for i, action := range actions {
			if opts.Metrics != nil {
				opts.Metrics.GateActions.WithLabelValues(plan.WorkflowName, spec.ID, action.Action).Inc()
			}
			switch action.Action {
			case node.ActionBlockDeploy:
				blockDeploy = true
			case node.ActionFail:
				failAction = &actions[i]
			}
		}
		if failAction != nil {
			return e.fail(ctx, record, spec.ID, &GateError{NodeID: spec.ID, Metric: failAction.Metric})
		}

		current = next
	}

	durationMS := time.Since(start).Milliseconds()
	inTok, outTok := costs.TokenUsage()
	if err := e.Store.UpdateCompletion(ctx, runID, current, inTok, outTok, costs.TotalCost(), durationMS, blockDeploy); err != nil {
		return record, fmt.Errorf("mark run completed: %w", err)
	}
	if opts.Metrics != nil {
		opts.Metrics.RunsTotal.WithLabelValues(plan.WorkflowName, store.StatusSucceeded).Inc()
	}

	record.Status = store.StatusSucceeded
	record.Outputs = current
	record.InputTokens = inTok
	record.OutputTokens = outTok
	record.CostUSD = costs.TotalCost()
	record.DurationMS = durationMS
	record.BlockDeploy = blockDeploy
	return record, nil
}

func (e *Engine) fail(ctx context.Context, record store.RunRecord, nodeID string, cause error) (store.RunRecord, error) {
	msg := cause.Error()
	if nodeID != "" {
		msg = fmt.Sprintf("node %s: %s", nodeID, msg)
	}
	_ = e.Store.UpdateStatus(ctx, record.ID, store.StatusFailed, msg)
	record.Status = store.StatusFailed
	record.Error = msg
	return record, cause
}

func (e *Engine) cancel(ctx context.Context, record store.RunRecord) (store.RunRecord, error) {
	// Use a detached context for the final status write: ctx is already
	// cancelled and a store write gated on it would never complete.
	_ = e.Store.UpdateStatus(context.WithoutCancel(ctx), record.ID, store.StatusCancelled, "cancelled")
	record.Status = store.StatusCancelled
	return record, ctx.Err()
}
