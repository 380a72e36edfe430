package echo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/llm"
)

func TestProvider_Sequence(t *testing.T) {
	p := &Provider{Responses: []llm.Result{{Text: "first"}, {Text: "second"}}}

	out, err := p.Invoke(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", out.Text)

	out, err = p.Invoke(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text)

	out, err = p.Invoke(context.Background(), llm.Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text, "repeats last response once exhausted")
}

func TestProvider_Err(t *testing.T) {
	p := &Provider{Err: errors.New("boom")}
	_, err := p.Invoke(context.Background(), llm.Request{})
	require.Error(t, err)
}

func TestProvider_RecordsCalls(t *testing.T) {
	p := &Provider{Responses: []llm.Result{{Text: "ok"}}}
	req := llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}
	_, _ = p.Invoke(context.Background(), req)
	require.Len(t, p.Calls(), 1)
	assert.Equal(t, "hi", p.Calls()[0].Messages[0].Content)
}

func TestProvider_Reset(t *testing.T) {
	p := &Provider{Responses: []llm.Result{{Text: "a"}, {Text: "b"}}}
	_, _ = p.Invoke(context.Background(), llm.Request{})
	p.Reset()
	out, _ := p.Invoke(context.Background(), llm.Request{})
	assert.Equal(t, "a", out.Text)
	assert.Len(t, p.Calls(), 1)
}
