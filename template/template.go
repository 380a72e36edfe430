// Package template resolves {path} placeholders in node prompts against
// the union of per-node inputs and shared workflow state (C5, spec §4.5).
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/configurable-agents/engine/internal/suggest"
)

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// ExtractPlaceholders returns every {path} placeholder name (without
// braces) found in template, in order of appearance, duplicates included.
func ExtractPlaceholders(tmpl string) []string {
	matches := placeholderRE.FindAllStringSubmatch(tmpl, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// ResolutionError reports an unresolved placeholder, with the available
// paths at the time of failure and a closest-match suggestion when one
// exists within the edit-distance cutoff.
type ResolutionError struct {
	Placeholder string
	Available   []string
	Suggestion  string
}

func (e *ResolutionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unresolved placeholder {%s}; did you mean {%s}? available: %s", e.Placeholder, e.Suggestion, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("unresolved placeholder {%s}; available: %s", e.Placeholder, strings.Join(e.Available, ", "))
}

// ResolveInputs resolves a node's declared inputs (name -> TemplatePath,
// spec §3) against workflow state, producing the map Resolve consumes
// for its prompt. Spec §4.8 step 1 requires this happen before prompt
// resolution, ahead of any state fallback.
func ResolveInputs(specs map[string]string, root map[string]any) (map[string]any, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	available := availablePaths(root)
	out := make(map[string]any, len(specs))
	for name, path := range specs {
		val, ok := lookup(path, root)
		if !ok {
			sugg, _ := suggest.Closest(path, available)
			return nil, &ResolutionError{Placeholder: path, Available: available, Suggestion: sugg}
		}
		out[name] = val
	}
	return out, nil
}

// Resolve substitutes every {path} in tmpl, resolving inputs first and
// falling back to state (inputs override state per spec §4.5). Dotted
// paths address nested Object fields. An error is returned if any
// placeholder remains unresolved.
func Resolve(tmpl string, inputs map[string]any, state map[string]any) (string, error) {
	var firstErr error
	available := availablePaths(inputs, state)

	result := placeholderRE.ReplaceAllStringFunc(tmpl, func(match string) string {
		if firstErr != nil {
			return match
		}
		path := match[1 : len(match)-1]
		val, ok := lookup(path, inputs)
		if !ok {
			val, ok = lookup(path, state)
		}
		if !ok {
			sugg, _ := suggest.Closest(path, available)
			firstErr = &ResolutionError{Placeholder: path, Available: available, Suggestion: sugg}
			return match
		}
		return fmt.Sprintf("%v", val)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// lookup resolves a dotted path against a (possibly nested) map.
func lookup(path string, root map[string]any) (any, bool) {
	if root == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = root
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func availablePaths(maps ...map[string]any) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}
