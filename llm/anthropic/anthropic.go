// Package anthropic adapts Anthropic's Claude API to the llm.Provider
// façade.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/configurable-agents/engine/llm"
)

// Provider implements llm.Provider for Claude models.
type Provider struct {
	modelName string
	client    anthropicClient
}

// anthropicClient isolates the SDK call so tests can substitute a fake.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error)
}

// New returns a Provider for modelName using apiKey. An empty modelName
// defaults to Claude Sonnet.
func New(apiKey, modelName string) *Provider {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &Provider{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Invoke implements llm.Provider.
func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	if err := ctx.Err(); err != nil {
		return llm.Result{}, &llm.TimeoutError{Provider: "anthropic", Cause: err}
	}

	system, conversation := extractSystem(req.Messages)
	tools := llm.BuildToolset(req.Tools, req.StructuredType)

	out, err := p.client.createMessage(ctx, system, conversation, tools)
	if err != nil {
		return llm.Result{}, translateError(err)
	}

	if req.StructuredType != nil {
		out, err = extractStructured(out, req.StructuredType)
		if err != nil {
			return llm.Result{}, err
		}
	}
	return out, nil
}

func extractSystem(messages []llm.Message) (string, []llm.Message) {
	var system string
	var rest []llm.Message
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// extractStructured pulls the synthetic structured-output tool call out of
// Result.ToolCalls and into Result.Value, or fails with ValidationError if
// the model never emitted it.
func extractStructured(out llm.Result, st *llm.StructuredType) (llm.Result, error) {
	for i, call := range out.ToolCalls {
		if llm.IsStructuredOutputCall(call) {
			out.Value = call.Input
			out.ToolCalls = append(out.ToolCalls[:i], out.ToolCalls[i+1:]...)
			return out, nil
		}
	}
	return llm.Result{}, &llm.ValidationError{
		Provider: "anthropic",
		Expected: st.Name,
		Cause:    errors.New("model did not call the structured output tool"),
	}
}

func translateError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return &llm.AuthError{Provider: "anthropic", Cause: err}
		case 429:
			return &llm.RateLimitedError{Provider: "anthropic", Cause: err}
		}
		return &llm.ProviderError{Provider: "anthropic", Cause: err}
	}
	return &llm.ProviderError{Provider: "anthropic", Cause: err}
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error) {
	if c.apiKey == "" {
		return llm.Result{}, &llm.AuthError{Provider: "anthropic", Cause: errors.New("missing API key")}
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return llm.Result{}, err
	}
	return convertResponse(resp, c.modelName), nil
}

func convertMessages(messages []llm.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, len(messages))
	for i, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			out[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content))
		default:
			out[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content))
		}
	}
	return out
}

func convertTools(tools []llm.ToolSpec) []anthropicsdk.ToolUnionParam {
	out := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, t := range tools {
		var properties any
		var required []string
		if t.Schema != nil {
			properties = t.Schema["properties"]
			if req, ok := t.Schema["required"].([]string); ok {
				required = req
			}
		}
		out[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.String(t.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{Properties: properties, Required: required},
			},
		}
	}
	return out
}

func convertResponse(resp *anthropicsdk.Message, model string) llm.Result {
	out := llm.Result{
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}
	out.Usage.CostUSD = llm.Cost(model, out.Usage.InputTokens, out.Usage.OutputTokens)

	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				Name:  b.Name,
				Input: decodeToolInput(b.Input),
			})
		}
	}
	return out
}

func decodeToolInput(input any) map[string]any {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
