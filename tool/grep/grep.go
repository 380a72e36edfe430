// Package grep provides a built-in tool that shells out to the system grep
// binary, for nodes that need ad hoc text search over a working directory.
// Adapted from the teacher pack's grep fallback tool.
package grep

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/configurable-agents/engine/tool"
)

// Name is the registry key this tool is registered under.
const Name = "grep"

// New returns the grep Tool rooted at root. Searches are always recursive
// and confined under root.
func New(root string) tool.Tool {
	return tool.Tool{
		Name: Name,
		Signature: tool.Signature{
			Description: "Searches text files under the working directory for a regular expression.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern":       map[string]any{"type": "string", "description": "extended regex to search for"},
					"path":          map[string]any{"type": "string", "description": "subdirectory to search, relative to the working directory"},
					"context_lines": map[string]any{"type": "integer", "description": "lines of context before/after each match, default 2, max 5"},
					"max_results":   map[string]any{"type": "integer", "description": "max matching lines per file, default 20, max 50"},
				},
				"required": []string{"pattern"},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return invoke(ctx, root, args)
		},
	}
}

func invoke(ctx context.Context, root string, args map[string]any) (map[string]any, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, fmt.Errorf("pattern argument is required")
	}

	searchPath := root
	if p, ok := args["path"].(string); ok && p != "" {
		searchPath = strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(p, "/")
	}

	contextLines := intArg(args, "context_lines", 2, 5)
	maxResults := intArg(args, "max_results", 20, 50)

	cmdArgs := []string{
		"-r", "-n", "-H",
		fmt.Sprintf("-C%d", contextLines),
		fmt.Sprintf("-m%d", maxResults),
		"--color=never", "-E",
		"--exclude-dir=.git",
		"--exclude-dir=node_modules",
		"--exclude-dir=vendor",
		pattern, searchPath,
	}

	cmd := exec.CommandContext(ctx, "grep", cmdArgs...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return map[string]any{"matches": "", "truncated": false}, nil
		}
		return nil, fmt.Errorf("grep: %w", err)
	}

	result := string(output)
	lines := strings.Split(result, "\n")
	truncated := false
	if len(lines) > maxResults*(contextLines*2+1) {
		lines = lines[:maxResults*(contextLines*2+1)]
		result = strings.Join(lines, "\n")
		truncated = true
	}
	return map[string]any{"matches": result, "truncated": truncated}, nil
}

func intArg(args map[string]any, key string, def, max int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	var n int
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case string:
		parsed, err := strconv.Atoi(t)
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
