// Package llm provides a uniform invoke() façade over multiple LLM vendors
// (C7, spec §4.7). It abstracts away provider-specific request/response
// shapes and normalizes errors into a small retryable taxonomy the node
// executor drives retries from.
package llm

import "context"

// Message is one turn of a conversation sent to a provider.
type Message struct {
	Role    string
	Content string
}

// Standard roles, shared across all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool a provider may call, surfaced to the model in
// its native tool-calling format.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a request from the model to invoke one of the offered tools.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// Usage reports token and dollar accounting for a single invoke call, the
// raw material for the node executor's cost accumulation (spec §4.8 step 5).
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Request is the invoke() contract's input record.
type Request struct {
	Messages []Message
	// Tools, when non-empty, are offered to the model alongside the prompt.
	Tools []ToolSpec
	// StructuredType, when set, forces the model to return a value
	// conforming to this type. BuildToolset enforces that Tools (if any)
	// are bound before this constraint is imposed, per the adapter
	// contract's ordering requirement.
	StructuredType *StructuredType
	Temperature    float64
	MaxTokens      int
}

// StructuredType names the structured output the model must return and the
// JSON Schema describing it.
type StructuredType struct {
	Name   string
	Schema map[string]any
}

// Result is the invoke() contract's output record.
type Result struct {
	Value     map[string]any
	Text      string
	Usage     Usage
	ToolCalls []ToolCall
}

// Provider is the uniform façade every vendor adapter implements.
type Provider interface {
	// Invoke sends req to the provider and returns its response, or one of
	// the taxonomy errors in this package.
	Invoke(ctx context.Context, req Request) (Result, error)
}
