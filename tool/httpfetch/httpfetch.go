// Package httpfetch provides a built-in tool that performs a bounded HTTP
// GET and returns the response body, for nodes that need to pull external
// reference material into a prompt. Adapted from the teacher pack's
// exec-and-capture tool wrappers, swapping the subprocess for net/http.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/configurable-agents/engine/tool"
)

// Name is the registry key this tool is registered under.
const Name = "http_fetch"

// DefaultMaxBytes bounds the response body read when a call omits
// max_bytes, keeping a single tool call from flooding a node's context.
const DefaultMaxBytes = 1 << 20 // 1 MiB

// New returns the http_fetch Tool using client, or http.DefaultClient when
// client is nil.
func New(client *http.Client) tool.Tool {
	if client == nil {
		client = http.DefaultClient
	}
	return tool.Tool{
		Name: Name,
		Signature: tool.Signature{
			Description: "Fetches a URL over HTTP GET and returns its body, truncated to a byte limit.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":       map[string]any{"type": "string", "description": "absolute http(s) URL to fetch"},
					"max_bytes": map[string]any{"type": "integer", "description": "response body byte cap, default 1MiB"},
				},
				"required": []string{"url"},
			},
		},
		Invoke: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return invoke(ctx, client, args)
		},
	}
}

func invoke(ctx context.Context, client *http.Client, args map[string]any) (map[string]any, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url argument is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must be absolute http(s): %q", url)
	}

	maxBytes := int64(DefaultMaxBytes)
	if mb, ok := args["max_bytes"].(float64); ok && mb > 0 {
		maxBytes = int64(mb)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(body),
		"truncated":   int64(len(body)) == maxBytes,
	}, nil
}
