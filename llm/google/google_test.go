package google

import (
	"context"
	"testing"

	"github.com/configurable-agents/engine/llm"
)

type fakeClient struct {
	result    llm.Result
	err       error
	callCount int
}

func (f *fakeClient) generateContent(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.Result, error) {
	f.callCount++
	return f.result, f.err
}

func TestProvider_New(t *testing.T) {
	p := New("key", "")
	if p.modelName != "gemini-2.5-flash" {
		t.Errorf("expected default model, got %q", p.modelName)
	}
}

func TestProvider_Invoke_Text(t *testing.T) {
	fc := &fakeClient{result: llm.Result{Text: "hi there"}}
	p := &Provider{client: fc, modelName: "gemini-1.5-flash"}

	out, err := p.Invoke(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "hi there" {
		t.Errorf("got %q", out.Text)
	}
}

func TestProvider_Invoke_SafetyFilterWraps(t *testing.T) {
	fc := &fakeClient{err: &SafetyFilterError{Reason: "SAFETY", Category: "HARM_CATEGORY_HATE_SPEECH"}}
	p := &Provider{client: fc, modelName: "gemini-1.5-flash"}

	_, err := p.Invoke(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	})
	if _, ok := err.(*llm.ProviderError); !ok {
		t.Fatalf("expected ProviderError wrapping safety filter, got %T: %v", err, err)
	}
}

func TestConvertSchema(t *testing.T) {
	schema := convertSchema(map[string]any{
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "description": "a name"},
		},
		"required": []string{"name"},
	})
	if schema.Properties["name"].Description != "a name" {
		t.Errorf("expected description carried over, got %+v", schema.Properties["name"])
	}
	if len(schema.Required) != 1 || schema.Required[0] != "name" {
		t.Errorf("expected required carried over, got %v", schema.Required)
	}
}
