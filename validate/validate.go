// Package validate implements the eight-pass semantic validator (C3, spec
// §4.3) that runs over a structurally parsed declaration before it is
// materialized into an executable graph.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/internal/suggest"
	"github.com/configurable-agents/engine/template"
	"github.com/configurable-agents/engine/typesys"
)

// Issue is one semantic validation failure.
type Issue struct {
	Path       string
	Message    string
	Suggestion string
}

func (i Issue) String() string {
	if i.Suggestion != "" {
		return fmt.Sprintf("%s: %s (did you mean %q?)", i.Path, i.Message, i.Suggestion)
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Error wraps the issues found by the first failing pass. The validator is
// fail-fast across passes (spec §4.3): it stops at the first category that
// produces any issue, but reports every issue within that category.
type Error struct {
	Pass   int
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		parts[i] = iss.String()
	}
	return fmt.Sprintf("validation failed (pass %d): %s", e.Pass, strings.Join(parts, "; "))
}

// Validate runs the eight ordered passes from spec §4.3 against d, in
// order, stopping at the first pass that reports any issue.
func Validate(d *declaration.Declaration) error {
	passes := []func(*declaration.Declaration) []Issue{
		passEdgeEndpoints,
		passNodeOutputsExist,
		passOutputSchemaMatchesOutputs,
		passOutputTypesMatchState,
		passPlaceholdersResolve,
		passTypesParse,
		passLinearOnly,
		passReachability,
	}
	for i, pass := range passes {
		if issues := pass(d); len(issues) > 0 {
			return &Error{Pass: i + 1, Issues: issues}
		}
	}
	return nil
}

// nodeIDs returns every node id plus START/END, for endpoint resolution.
func nodeIDs(d *declaration.Declaration) []string {
	ids := make([]string, 0, len(d.Nodes)+2)
	ids = append(ids, declaration.Start, declaration.End)
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// pass 1: every edge endpoint resolves to an existing node id or START/END.
func passEdgeEndpoints(d *declaration.Declaration) []Issue {
	valid := make(map[string]bool)
	for _, id := range nodeIDs(d) {
		valid[id] = true
	}
	var issues []Issue
	checkEndpoint := func(path, id string) {
		if id == "" {
			return
		}
		if !valid[id] {
			sugg, ok := suggest.Closest(id, nodeIDs(d))
			iss := Issue{Path: path, Message: fmt.Sprintf("unknown node id %q", id)}
			if ok {
				iss.Suggestion = sugg
			}
			issues = append(issues, iss)
		}
	}
	startCount := 0
	for i, e := range d.Edges {
		base := fmt.Sprintf("edges[%d]", i)
		checkEndpoint(base+".from", e.From)
		if e.From == declaration.Start {
			startCount++
		}
		if e.To != "" {
			checkEndpoint(base+".to", e.To)
		}
		for j, r := range e.Routes {
			checkEndpoint(fmt.Sprintf("%s.routes[%d].to", base, j), r.To)
		}
	}
	if startCount != 1 {
		issues = append(issues, Issue{Path: "edges", Message: fmt.Sprintf("exactly one edge must originate at START, found %d", startCount)})
	}
	return issues
}

// pass 2: every node outputs entry names an existing state field.
func passNodeOutputsExist(d *declaration.Declaration) []Issue {
	stateFields := make([]string, 0, len(d.State))
	for name := range d.State {
		stateFields = append(stateFields, name)
	}
	var issues []Issue
	for i, n := range d.Nodes {
		for j, out := range n.Outputs {
			if _, ok := d.State[out]; !ok {
				path := fmt.Sprintf("nodes[%d].outputs[%d]", i, j)
				iss := Issue{Path: path, Message: fmt.Sprintf("output %q is not a state field", out)}
				if s, ok := suggest.Closest(out, stateFields); ok {
					iss.Suggestion = s
				}
				issues = append(issues, iss)
			}
		}
	}
	return issues
}

// pass 3: output_schema field set equals outputs set exactly.
func passOutputSchemaMatchesOutputs(d *declaration.Declaration) []Issue {
	var issues []Issue
	for i, n := range d.Nodes {
		if len(n.OutputSchema) == 0 {
			continue
		}
		path := fmt.Sprintf("nodes[%d].output_schema", i)
		outSet := make(map[string]bool, len(n.Outputs))
		for _, o := range n.Outputs {
			outSet[o] = true
		}
		schemaSet := make(map[string]bool, len(n.OutputSchema))
		for name := range n.OutputSchema {
			schemaSet[name] = true
			if !outSet[name] {
				issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("output_schema has extra field %q not in outputs", name)})
			}
		}
		for o := range outSet {
			if !schemaSet[o] {
				issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("outputs field %q missing from output_schema", o)})
			}
		}
	}
	return issues
}

// pass 4: output_schema field types match their state field types.
func passOutputTypesMatchState(d *declaration.Declaration) []Issue {
	var issues []Issue
	for i, n := range d.Nodes {
		for field, typeStr := range n.OutputSchema {
			stateField, ok := d.State[field]
			if !ok {
				continue // reported by pass 2
			}
			outType, err := typesys.ParseType(typeStr)
			if err != nil {
				continue // reported by pass 6
			}
			stateType, err := typesys.ParseType(stateField.Type)
			if err != nil {
				continue
			}
			if !outType.Equal(stateType) {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("nodes[%d].output_schema.%s", i, field),
					Message: fmt.Sprintf("type %s does not match state field type %s", outType, stateType),
				})
			}
		}
	}
	return issues
}

// pass 5: every {path} placeholder in a node's prompt resolves against
// inputs ∪ state.fields, and every input mapping path resolves against
// state.fields. Nodes carry no system message, so there is none to check.
func passPlaceholdersResolve(d *declaration.Declaration) []Issue {
	stateFields := make([]string, 0, len(d.State))
	for name := range d.State {
		stateFields = append(stateFields, name)
	}
	var issues []Issue
	for i, n := range d.Nodes {
		available := make(map[string]bool)
		for name := range n.Inputs {
			available[name] = true
		}
		for name := range d.State {
			available[name] = true
		}
		placeholders := template.ExtractPlaceholders(n.Prompt)
		for _, ph := range placeholders {
			root := strings.SplitN(ph, ".", 2)[0]
			if !available[root] {
				candidates := append(append([]string{}, stateFields...), keysOf(n.Inputs)...)
				iss := Issue{
					Path:    fmt.Sprintf("nodes[%d].prompt", i),
					Message: fmt.Sprintf("placeholder {%s} does not resolve against inputs or state", ph),
				}
				if s, ok := suggest.Closest(root, candidates); ok {
					iss.Suggestion = s
				}
				issues = append(issues, iss)
			}
		}
		for _, name := range keysOf(n.Inputs) {
			root := strings.SplitN(n.Inputs[name], ".", 2)[0]
			if _, ok := d.State[root]; !ok {
				iss := Issue{
					Path:    fmt.Sprintf("nodes[%d].inputs.%s", i, name),
					Message: fmt.Sprintf("input path %q does not resolve against state", n.Inputs[name]),
				}
				if s, ok := suggest.Closest(root, stateFields); ok {
					iss.Suggestion = s
				}
				issues = append(issues, iss)
			}
		}
	}
	return issues
}

func keysOf(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// pass 6: all TypeRefs (state field types and output_schema types) parse.
func passTypesParse(d *declaration.Declaration) []Issue {
	var issues []Issue
	for name, fs := range d.State {
		if _, err := typesys.ParseType(fs.Type); err != nil {
			issues = append(issues, Issue{Path: "state." + name + ".type", Message: err.Error()})
		}
	}
	for i, n := range d.Nodes {
		for field, typeStr := range n.OutputSchema {
			if _, err := typesys.ParseType(typeStr); err != nil {
				issues = append(issues, Issue{Path: fmt.Sprintf("nodes[%d].output_schema.%s", i, field), Message: err.Error()})
			}
		}
	}
	return issues
}

// pass 7: v1.0 linear-only constraint — no node has more than one outgoing
// edge, no conditional routes, no cycles.
func passLinearOnly(d *declaration.Declaration) []Issue {
	var issues []Issue
	outDegree := make(map[string]int)
	adj := make(map[string]string)
	for i, e := range d.Edges {
		if len(e.Routes) > 0 {
			issues = append(issues, Issue{Path: fmt.Sprintf("edges[%d]", i), Message: "conditional routes are not supported in v1.0 (linear-only)"})
			continue
		}
		outDegree[e.From]++
		adj[e.From] = e.To
	}
	for from, deg := range outDegree {
		if deg > 1 {
			issues = append(issues, Issue{Path: "edges", Message: fmt.Sprintf("node %q has %d outgoing edges; v1.0 requires exactly one", from, deg)})
		}
	}
	if len(issues) > 0 {
		return issues
	}

	visited := make(map[string]bool)
	cur := declaration.Start
	for {
		next, ok := adj[cur]
		if !ok {
			break
		}
		if next == declaration.End {
			break
		}
		if visited[next] {
			issues = append(issues, Issue{Path: "edges", Message: fmt.Sprintf("cycle detected at node %q", next)})
			return issues
		}
		visited[next] = true
		cur = next
	}
	return issues
}

// pass 8: BFS from START covers all nodes; reverse BFS from END covers all
// nodes.
func passReachability(d *declaration.Declaration) []Issue {
	fwd := make(map[string][]string)
	rev := make(map[string][]string)
	for _, e := range d.Edges {
		if e.To != "" {
			fwd[e.From] = append(fwd[e.From], e.To)
			rev[e.To] = append(rev[e.To], e.From)
		}
		for _, r := range e.Routes {
			fwd[e.From] = append(fwd[e.From], r.To)
			rev[r.To] = append(rev[r.To], e.From)
		}
	}

	reachableFromStart := bfs(fwd, declaration.Start)
	reachesEnd := bfs(rev, declaration.End)

	var issues []Issue
	for _, n := range d.Nodes {
		if !reachableFromStart[n.ID] {
			issues = append(issues, Issue{Path: "nodes." + n.ID, Message: "node is not reachable from START"})
		}
		if !reachesEnd[n.ID] {
			issues = append(issues, Issue{Path: "nodes." + n.ID, Message: "node does not reach END"})
		}
	}
	return issues
}

func bfs(adj map[string][]string, start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}
