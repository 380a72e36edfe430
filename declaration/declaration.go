// Package declaration defines the typed model for a workflow declaration
// document and loads it from YAML or JSON (spec §3, §4.2).
package declaration

// Declaration is the immutable, once-parsed workflow document.
type Declaration struct {
	SchemaVersion string              `yaml:"schema_version" json:"schema_version"`
	Flow          Flow                `yaml:"flow" json:"flow"`
	State         map[string]FieldSpec `yaml:"state" json:"state"`
	Nodes         []NodeSpec          `yaml:"nodes" json:"nodes"`
	Edges         []EdgeSpec          `yaml:"edges" json:"edges"`
	Config        *Config             `yaml:"config,omitempty" json:"config,omitempty"`
	Optimization  *Optimization       `yaml:"optimization,omitempty" json:"optimization,omitempty"`

	// SourcePath records the file path Load read this declaration from; it
	// is empty for a declaration built by Parse.
	SourcePath string `yaml:"-" json:"-"`
}

// Flow carries the workflow's identity metadata.
type Flow struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
}

// FieldSpec describes one entry in the shared state (spec §3).
type FieldSpec struct {
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	hasDefault  bool
}

// HasDefault reports whether Default was present in the source document
// (as opposed to being the zero value of `any`).
func (f FieldSpec) HasDefault() bool { return f.hasDefault }

// NodeSpec describes one processing step (spec §3).
type NodeSpec struct {
	ID           string            `yaml:"id" json:"id"`
	Prompt       string            `yaml:"prompt" json:"prompt"`
	Inputs       map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	LLM          *LLMRef           `yaml:"llm,omitempty" json:"llm,omitempty"`
	Tools        []string          `yaml:"tools,omitempty" json:"tools,omitempty"`
	Outputs      []string          `yaml:"outputs" json:"outputs"`
	OutputSchema map[string]string `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`
	Retry        int               `yaml:"retry,omitempty" json:"retry,omitempty"`
	Timeout      Duration          `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// LLMRef selects a model/provider and its invocation parameters for a node.
type LLMRef struct {
	Provider    string  `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model       string  `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// EdgeSpec is linear ({From,To}) or conditional ({From,Routes}); v1.0 only
// accepts the linear form (spec §4.3 pass 7): validation rejects any edge
// that carries Routes.
type EdgeSpec struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to,omitempty" json:"to,omitempty"`
	Routes []Route `yaml:"routes,omitempty" json:"routes,omitempty"`
}

// Route is one conditional branch of a conditional EdgeSpec.
type Route struct {
	Condition string `yaml:"condition" json:"condition"`
	To        string `yaml:"to" json:"to"`
}

// Config carries optional engine-level defaults.
type Config struct {
	LLMDefaults       *LLMRef            `yaml:"llm_defaults,omitempty" json:"llm_defaults,omitempty"`
	ExecutionDefaults *ExecutionDefaults `yaml:"execution_defaults,omitempty" json:"execution_defaults,omitempty"`
	Observability     *Observability     `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// ExecutionDefaults are the fallback retry/timeout values nodes inherit
// when they don't declare their own.
type ExecutionDefaults struct {
	Retry   int      `yaml:"retry,omitempty" json:"retry,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Observability configures tracing/metrics export for runs of this workflow.
type Observability struct {
	TracingEnabled bool `yaml:"tracing_enabled,omitempty" json:"tracing_enabled,omitempty"`
	MetricsEnabled bool `yaml:"metrics_enabled,omitempty" json:"metrics_enabled,omitempty"`
}

// Optimization declares the A/B test and quality gates attached to this
// workflow (spec §3, §4.13).
type Optimization struct {
	ABTest *ABTestSpec `yaml:"ab_test,omitempty" json:"ab_test,omitempty"`
	Gates  []GateSpec  `yaml:"gates,omitempty" json:"gates,omitempty"`
}

// ABTestSpec names the experiment and its variants.
type ABTestSpec struct {
	ExperimentName string        `yaml:"experiment_name" json:"experiment_name"`
	RunCount       int           `yaml:"run_count" json:"run_count"`
	Variants       []VariantSpec `yaml:"variants" json:"variants"`
}

// VariantSpec overrides one node's prompt for a single A/B arm.
type VariantSpec struct {
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt" json:"prompt"`
	NodeID string `yaml:"node_id" json:"node_id"`
}

// GateSpec is a predicate on a metric that emits an action.
type GateSpec struct {
	Metric    string  `yaml:"metric" json:"metric"`
	Operator  string  `yaml:"operator" json:"operator"` // one of: gt, gte, lt, lte, eq
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Action    string  `yaml:"action" json:"action"` // WARN | FAIL | BLOCK_DEPLOY
	NodeID    string  `yaml:"node_id,omitempty" json:"node_id,omitempty"`
}

// Identifiers used structurally throughout the declaration and the graph.
const (
	Start = "START"
	End   = "END"
)
