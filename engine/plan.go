package engine

import (
	"fmt"

	"github.com/configurable-agents/engine/declaration"
)

// Plan is the linear topological order the declaration's edges describe.
// v1.0 accepts only linear graphs (spec §4.3 pass 7): no node has more than
// one outgoing edge, no conditional routes, no cycles.
type Plan struct {
	WorkflowName string
	Nodes        []declaration.NodeSpec
}

// BuildPlan walks d.Edges from START to END, resolving each hop to its
// NodeSpec. It assumes the semantic validator (C3) has already rejected
// branching, conditional routes, and cycles; BuildPlan re-derives the order
// rather than trusting declaration order, since nodes may be declared out
// of edge order in the source document.
func BuildPlan(d *declaration.Declaration) (Plan, error) {
	byID := make(map[string]declaration.NodeSpec, len(d.Nodes))
	for _, n := range d.Nodes {
		byID[n.ID] = n
	}

	next := make(map[string]string, len(d.Edges))
	for _, e := range d.Edges {
		if len(e.Routes) > 0 {
			return Plan{}, fmt.Errorf("conditional edges are not supported in v1.0 (from %q)", e.From)
		}
		if _, exists := next[e.From]; exists {
			return Plan{}, fmt.Errorf("node %q has more than one outgoing edge", e.From)
		}
		next[e.From] = e.To
	}

	cur, ok := next[declaration.Start]
	if !ok {
		return Plan{}, fmt.Errorf("declaration has no edge from %s", declaration.Start)
	}

	seen := make(map[string]bool, len(d.Nodes))
	var ordered []declaration.NodeSpec
	for cur != declaration.End {
		if seen[cur] {
			return Plan{}, fmt.Errorf("cycle detected at node %q", cur)
		}
		seen[cur] = true

		spec, ok := byID[cur]
		if !ok {
			return Plan{}, fmt.Errorf("edge references unknown node %q", cur)
		}
		ordered = append(ordered, spec)

		nextID, ok := next[cur]
		if !ok {
			return Plan{}, fmt.Errorf("node %q has no outgoing edge to %s", cur, declaration.End)
		}
		cur = nextID
	}

	if len(ordered) != len(d.Nodes) {
		return Plan{}, fmt.Errorf("declaration has %d nodes but only %d are reachable from %s", len(d.Nodes), len(ordered), declaration.Start)
	}

	return Plan{WorkflowName: d.Flow.Name, Nodes: ordered}, nil
}
