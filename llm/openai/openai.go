// Package openai adapts OpenAI's chat completions API to the llm.Provider
// façade.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/configurable-agents/engine/llm"
)

// Provider implements llm.Provider for OpenAI chat models.
type Provider struct {
	modelName string
	client    openaiClient
}

type openaiClient interface {
	createChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error)
}

// New returns a Provider for modelName using apiKey. An empty modelName
// defaults to gpt-4o.
func New(apiKey, modelName string) *Provider {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &Provider{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Invoke implements llm.Provider.
func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	if err := ctx.Err(); err != nil {
		return llm.Result{}, &llm.TimeoutError{Provider: "openai", Cause: err}
	}

	tools := llm.BuildToolset(req.Tools, req.StructuredType)
	out, err := p.client.createChatCompletion(ctx, req.Messages, tools)
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

func extractStructured(out llm.Result, st *llm.StructuredType) (llm.Result, error) {
	for i, call := range out.ToolCalls {
		if llm.IsStructuredOutputCall(call) {
			out.Value = call.Input
			out.ToolCalls = append(out.ToolCalls[:i], out.ToolCalls[i+1:]...)
			return out, nil
		}
	}
	return llm.Result{}, &llm.ValidationError{
		Provider: "openai",
		Expected: st.Name,
		Cause:    errors.New("model did not call the structured output tool"),
	}
}

func translateError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return &llm.AuthError{Provider: "openai", Cause: err}
		case 429:
			return &llm.RateLimitedError{Provider: "openai", Cause: err}
		}
		return &llm.ProviderError{Provider: "openai", Cause: err}
	}
	return &llm.ProviderError{Provider: "openai", Cause: err}
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error) {
	if c.apiKey == "" {
		return llm.Result{}, &llm.AuthError{Provider: "openai", Cause: errors.New("missing API key")}
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Result{}, err
	}
	return convertResponse(resp, c.modelName), nil
}

func convertMessages(messages []llm.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out[i] = openaisdk.SystemMessage(m.Content)
		case llm.RoleAssistant:
			out[i] = openaisdk.AssistantMessage(m.Content)
		default:
			out[i] = openaisdk.UserMessage(m.Content)
		}
	}
	return out
}

func convertTools(tools []llm.ToolSpec) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Schema),
			},
		}
	}
	return out
}

func convertResponse(resp *openaisdk.ChatCompletion, model string) llm.Result {
	out := llm.Result{
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	out.Usage.CostUSD = llm.Cost(model, out.Usage.InputTokens, out.Usage.OutputTokens)

	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content

	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]llm.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			out.ToolCalls[i] = llm.ToolCall{
				Name:  tc.Function.Name,
				Input: decodeToolInput(tc.Function.Arguments),
			}
		}
	}
	return out
}

// decodeToolInput parses the JSON-encoded arguments string OpenAI returns
// for a tool call into a map. The teacher's equivalent left this
// unimplemented (a "_raw" passthrough); structured output validation
// depends on receiving a real map here.
func decodeToolInput(jsonStr string) map[string]any {
	if jsonStr == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &m); err != nil {
		return map[string]any{"_raw": jsonStr}
	}
	return m
}
