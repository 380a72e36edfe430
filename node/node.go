// Package node implements the per-node execution procedure (C8, spec §4.8):
// resolve prompts, invoke the configured LLM with its tools and structured
// type, validate and merge the result into state, accumulate cost/latency
// metrics, and evaluate quality gates.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/llm"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/template"
	"github.com/configurable-agents/engine/tool"
)

// Metrics accumulates one node execution's accounting figures (spec §4.8
// step 5).
type Metrics struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMS   int64
	Attempts     int
}

// Add accumulates u and duration into m.
func (m *Metrics) Add(u llm.Usage, duration time.Duration) {
	m.InputTokens += u.InputTokens
	m.OutputTokens += u.OutputTokens
	m.CostUSD += u.CostUSD
	m.DurationMS += duration.Milliseconds()
}

// FailureError reports that a node exhausted its retries or otherwise
// could not be executed; the run transitions to failed (spec §4.9).
type FailureError struct {
	NodeID string
	Cause  error
}

func (e *FailureError) Error() string { return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Cause) }
func (e *FailureError) Unwrap() error { return e.Cause }

// Executor resolves a node spec's LLM provider and tool list, then drives
// its execution procedure.
type Executor struct {
	Providers map[string]llm.Provider // keyed by LLMRef.Provider
	Tools     *tool.Registry
	Gates     []declaration.GateSpec
	// Clock exists for test determinism; defaults to time.Now/time.Since.
	Clock func() time.Time
}

func (e *Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// Execute runs one node against the live state and returns the merged
// state, accumulated metrics, and any gate actions triggered.
func (e *Executor) Execute(ctx context.Context, spec declaration.NodeSpec, builder *state.Builder, current state.State, llmDefaults *declaration.LLMRef, executionDefaults *declaration.ExecutionDefaults) (state.State, Metrics, []GateAction, error) {
	var metrics Metrics

	inputs, err := template.ResolveInputs(spec.Inputs, current)
	if err != nil {
		return nil, metrics, nil, &FailureError{NodeID: spec.ID, Cause: err}
	}

	prompt, err := template.Resolve(spec.Prompt, inputs, current)
	if err != nil {
		return nil, metrics, nil, &FailureError{NodeID: spec.ID, Cause: err}
	}

	provider, err := e.resolveProvider(spec.LLM, llmDefaults)
	if err != nil {
		return nil, metrics, nil, &FailureError{NodeID: spec.ID, Cause: err}
	}

	tools, err := e.Tools.Resolve(spec.Tools)
	if err != nil {
		return nil, metrics, nil, &FailureError{NodeID: spec.ID, Cause: err}
	}
	toolSpecs := make([]llm.ToolSpec, len(tools))
	for i, t := range tools {
		toolSpecs[i] = llm.ToolSpec{Name: t.Name, Description: t.Signature.Description, Schema: t.Signature.Schema}
	}

	structuredType := structuredTypeFor(spec)

	maxAttempts := resolveRetry(spec.Retry, executionDefaults)
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	var result llm.Result
	var out state.NodeOutput
	for attempt := 0; attempt < maxAttempts; attempt++ {
		metrics.Attempts++
		start := e.now()
		result, err = provider.Invoke(ctx, llm.Request{
			Messages:       messages,
			Tools:          toolSpecs,
			StructuredType: structuredType,
			Temperature:    llmTemperature(spec.LLM, llmDefaults),
			MaxTokens:      llmMaxTokens(spec.LLM, llmDefaults),
		})
		metrics.Add(result.Usage, e.now().Sub(start))

		retryable := false
		if err == nil {
			// A response with no provider-level error can still fail output
			// validation (wrong type, missing field); spec §4.8 step 3 retries
			// that the same as a retryable provider error.
			out, err = builder.ValidateOutput(spec.ID, result.Value)
			retryable = err != nil
		} else {
			retryable = llm.Retryable(err)
		}

		if err == nil {
			break
		}
		if !retryable || attempt == maxAttempts-1 {
			return nil, metrics, nil, &FailureError{NodeID: spec.ID, Cause: err}
		}
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: retryHint(structuredType),
		})
	}

	next := state.Merge(current, out)
	gateActions := EvaluateGates(e.Gates, spec.ID, metrics)
	return next, metrics, gateActions, nil
}

func (e *Executor) resolveProvider(ref, fallback *declaration.LLMRef) (llm.Provider, error) {
	name := providerName(ref, fallback)
	p, ok := e.Providers[name]
	if !ok {
		return nil, fmt.Errorf("no LLM provider registered for %q", name)
	}
	return p, nil
}

func providerName(ref, fallback *declaration.LLMRef) string {
	if ref != nil && ref.Provider != "" {
		return ref.Provider
	}
	if fallback != nil && fallback.Provider != "" {
		return fallback.Provider
	}
	return "default"
}

func llmTemperature(ref, fallback *declaration.LLMRef) float64 {
	if ref != nil && ref.Temperature != 0 {
		return ref.Temperature
	}
	if fallback != nil {
		return fallback.Temperature
	}
	return 0
}

func llmMaxTokens(ref, fallback *declaration.LLMRef) int {
	if ref != nil && ref.MaxTokens != 0 {
		return ref.MaxTokens
	}
	if fallback != nil {
		return fallback.MaxTokens
	}
	return 0
}

func resolveRetry(nodeRetry int, defaults *declaration.ExecutionDefaults) int {
	retry := nodeRetry
	if retry == 0 && defaults != nil {
		retry = defaults.Retry
	}
	return retry + 1 // retry count is additional attempts beyond the first
}

// structuredTypeFor builds the StructuredType from a node's output_schema,
// the contract's source of truth for the value shape the model must return.
func structuredTypeFor(spec declaration.NodeSpec) *llm.StructuredType {
	if len(spec.OutputSchema) == 0 {
		return nil
	}
	properties := make(map[string]any, len(spec.OutputSchema))
	required := make([]string, 0, len(spec.OutputSchema))
	for field, typ := range spec.OutputSchema {
		properties[field] = map[string]any{"type": jsonSchemaType(typ)}
		required = append(required, field)
	}
	return &llm.StructuredType{
		Name: spec.ID + "_output",
		Schema: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func retryHint(st *llm.StructuredType) string {
	if st == nil {
		return "Your previous response could not be used. Please try again."
	}
	return fmt.Sprintf("Your previous response did not satisfy the expected schema for %q. Respond again, strictly conforming to it.", st.Name)
}

func jsonSchemaType(typ string) string {
	switch typ {
	case "int", "float":
		return "number"
	case "bool":
		return "boolean"
	case "list":
		return "array"
	case "dict", "object":
		return "object"
	default:
		return "string"
	}
}
