// Package google adapts Google's Gemini API to the llm.Provider façade.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/configurable-agents/engine/llm"
)

// Provider implements llm.Provider for Gemini models.
type Provider struct {
	modelName string
	client    googleClient
}

type googleClient interface {
	generateContent(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error)
}

// New returns a Provider for modelName using apiKey. An empty modelName
// defaults to Gemini 2.5 Flash.
func New(apiKey, modelName string) *Provider {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &Provider{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Invoke implements llm.Provider.
func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	if err := ctx.Err(); err != nil {
		return llm.Result{}, &llm.TimeoutError{Provider: "google", Cause: err}
	}

	tools := llm.BuildToolset(req.Tools, req.StructuredType)
	out, err := p.client.generateContent(ctx, req.Messages, tools)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return llm.Result{}, &llm.ProviderError{Provider: "google", Cause: safetyErr}
		}
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
		Provider: "google",
		Expected: st.Name,
		Cause:    errors.New("model did not call the structured output tool"),
	}
}

func translateError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return &llm.AuthError{Provider: "google", Cause: err}
		case 429:
			return &llm.RateLimitedError{Provider: "google", Cause: err}
		}
		return &llm.ProviderError{Provider: "google", Cause: err}
	}
	return &llm.ProviderError{Provider: "google", Cause: err}
}

// SafetyFilterError reports a Gemini safety filter block.
type SafetyFilterError struct {
	Reason   string
	Category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.Category
}

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error) {
	if c.apiKey == "" {
		return llm.Result{}, &llm.AuthError{Provider: "google", Cause: errors.New("missing API key")}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return llm.Result{}, fmt.Errorf("create google client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(c.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return llm.Result{}, err
	}

	if candidateBlocked(resp) {
		return llm.Result{}, &SafetyFilterError{Reason: "SAFETY", Category: blockReason(resp)}
	}
	return convertResponse(resp, c.modelName), nil
}

func candidateBlocked(resp *genai.GenerateContentResponse) bool {
	return len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil
}

func blockReason(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) > 0 {
		return resp.Candidates[0].FinishReason.String()
	}
	return "unknown"
}

func convertMessages(messages []llm.Message) []genai.Part {
	var parts []genai.Part
	for _, m := range messages {
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
	}
	return parts
}

func convertTools(tools []llm.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]any); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]any)
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				propSchema.Type = convertType(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}

	if required, ok := schema["required"].([]string); ok {
		result.Required = required
	}
	return result
}

func convertType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(resp *genai.GenerateContentResponse, model string) llm.Result {
	out := llm.Result{}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
		out.Usage.CostUSD = llm.Cost(model, out.Usage.InputTokens, out.Usage.OutputTokens)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{Name: p.Name, Input: p.Args})
		}
	}
	return out
}
