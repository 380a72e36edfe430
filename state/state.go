// Package state synthesizes the runtime state and per-node output models
// from a validated declaration (C4, spec §4.4). Per the "dynamic record
// synthesis" design note, state is carried as a tagged map rather than a
// generated struct: a field-spec table built once at plan time validates
// values by name at run time.
package state

import (
	"fmt"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/typesys"
)

// Field is one resolved entry of the state's field table.
type Field struct {
	Name     string
	Type     typesys.TypeRef
	Required bool
	Default  any
}

// State is the tagged map shared across a single run's node executions.
type State map[string]any

// Clone returns a shallow copy of s, used so node executors never mutate a
// state map another goroutine might still be reading (spec §5 ordering:
// node i's mutation fully visible before node i+1 starts).
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Builder holds the compiled field table for one declaration and exposes
// the side-effect-free constructors C4 specifies. A Builder is safe to
// reuse across many runs of the same declaration.
type Builder struct {
	fields map[string]Field
	nodes  map[string]*declaration.NodeSpec
}

// NewBuilder compiles the declaration's state field table. The declaration
// must already have passed validate.Validate.
func NewBuilder(d *declaration.Declaration) (*Builder, error) {
	fields := make(map[string]Field, len(d.State))
	for name, fs := range d.State {
		t, err := typesys.ParseType(fs.Type)
		if err != nil {
			return nil, fmt.Errorf("state field %q: %w", name, err)
		}
		fields[name] = Field{Name: name, Type: t, Required: fs.Required, Default: fs.Default}
	}
	nodes := make(map[string]*declaration.NodeSpec, len(d.Nodes))
	for i := range d.Nodes {
		nodes[d.Nodes[i].ID] = &d.Nodes[i]
	}
	return &Builder{fields: fields, nodes: nodes}, nil
}

// Fields returns the compiled field table, keyed by field name.
func (b *Builder) Fields() map[string]Field { return b.fields }

// MakeState initializes a new run's state from its inputs: required fields
// must be present in inputs, and fields with declared defaults receive them
// when absent.
func (b *Builder) MakeState(inputs map[string]any) (State, error) {
	s := make(State, len(b.fields))
	for name, f := range b.fields {
		if v, ok := inputs[name]; ok {
			if err := typesys.ValidateValue(v, f.Type); err != nil {
				return nil, fmt.Errorf("input %q: %w", name, err)
			}
			s[name] = v
			continue
		}
		if f.Required {
			return nil, fmt.Errorf("required input %q missing", name)
		}
		if f.Default != nil {
			s[name] = f.Default
		}
	}
	return s, nil
}

// NodeOutput is a validated, atomically-mergeable set of state updates
// produced by one node.
type NodeOutput struct {
	NodeID string
	Values map[string]any
}

// OutputError reports which output field failed validation.
type OutputError struct {
	NodeID string
	Field  string
	Cause  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("node %s output field %q: %v", e.NodeID, e.Field, e.Cause)
}

func (e *OutputError) Unwrap() error { return e.Cause }

// ValidateOutput checks a node's raw output value against its
// output_schema (falling back to the state field types when no
// output_schema was declared) and returns a NodeOutput ready to merge.
// Fields either all validate or none merge (spec §4.8 step 4): the first
// failing field aborts the whole call.
func (b *Builder) ValidateOutput(nodeID string, value map[string]any) (NodeOutput, error) {
	node, ok := b.nodes[nodeID]
	if !ok {
		return NodeOutput{}, fmt.Errorf("unknown node %q", nodeID)
	}

	out := make(map[string]any, len(node.Outputs))
	for _, fieldName := range node.Outputs {
		v, present := value[fieldName]
		if !present {
			return NodeOutput{}, &OutputError{NodeID: nodeID, Field: fieldName, Cause: fmt.Errorf("missing from node output")}
		}
		t, err := b.outputType(node, fieldName)
		if err != nil {
			return NodeOutput{}, &OutputError{NodeID: nodeID, Field: fieldName, Cause: err}
		}
		if err := typesys.ValidateValue(v, t); err != nil {
			return NodeOutput{}, &OutputError{NodeID: nodeID, Field: fieldName, Cause: err}
		}
		out[fieldName] = v
	}
	return NodeOutput{NodeID: nodeID, Values: out}, nil
}

func (b *Builder) outputType(node *declaration.NodeSpec, fieldName string) (typesys.TypeRef, error) {
	if typeStr, ok := node.OutputSchema[fieldName]; ok {
		return typesys.ParseType(typeStr)
	}
	f, ok := b.fields[fieldName]
	if !ok {
		return typesys.TypeRef{}, fmt.Errorf("no type information for field %q", fieldName)
	}
	return f.Type, nil
}

// Merge applies a NodeOutput onto the accumulated state, overwriting any
// existing values for the same field names. This is the run executor's
// reducer (spec §4.4, §4.8): deterministic, last-writer-wins within a
// single run's strictly sequential node order.
func Merge(prev State, out NodeOutput) State {
	next := prev.Clone()
	for k, v := range out.Values {
		next[k] = v
	}
	return next
}
