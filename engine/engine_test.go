package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/llm"
	"github.com/configurable-agents/engine/llm/echo"
	"github.com/configurable-agents/engine/node"
	"github.com/configurable-agents/engine/state"
	storepkg "github.com/configurable-agents/engine/store"
	"github.com/configurable-agents/engine/store/memory"
	"github.com/configurable-agents/engine/tool"
)

const twoStepDoc = `
schema_version: "1.0"
flow:
  name: research-write
state:
  topic:
    type: str
    required: true
  research:
    type: str
  article:
    type: str
nodes:
  - id: research
    prompt: "Research: {topic}"
    outputs: [research]
    output_schema:
      research: str
  - id: write
    prompt: "Write about: {research}"
    outputs: [article]
    output_schema:
      article: str
edges:
  - from: START
    to: research
  - from: research
    to: write
  - from: write
    to: END
`

func setup(t *testing.T) (*declaration.Declaration, *state.Builder, *memory.Store) {
	t.Helper()
	d, err := declaration.Parse([]byte(twoStepDoc), declaration.FormatYAML)
	require.NoError(t, err)
	b, err := state.NewBuilder(d)
	require.NoError(t, err)
	return d, b, memory.New()
}

func TestEngine_Execute_Success(t *testing.T) {
	d, b, st := setup(t)
	provider := &echo.Provider{Responses: []llm.Result{
		{Value: map[string]any{"research": "facts"}},
		{Value: map[string]any{"article": "facts, elaborated"}},
	}}
	exec := &node.Executor{Providers: map[string]llm.Provider{"default": provider}, Tools: tool.NewRegistry()}
	eng := New(st, exec)

	record, err := eng.Execute(context.Background(), d, b, map[string]any{"topic": "bees"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, storepkg.StatusSucceeded, record.Status)
	assert.Equal(t, "facts, elaborated", record.Outputs["article"])

	got, err := st.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, storepkg.StatusSucceeded, got.Status)
	assert.Equal(t, "facts", got.Outputs["research"])
}

func TestEngine_Execute_NodeFailurePersists(t *testing.T) {
	d, b, st := setup(t)
	exec := &node.Executor{Providers: map[string]llm.Provider{}, Tools: tool.NewRegistry()}
	eng := New(st, exec)

	record, err := eng.Execute(context.Background(), d, b, map[string]any{"topic": "bees"}, Options{})
	require.Error(t, err)
	assert.Equal(t, storepkg.StatusFailed, record.Status)

	got, err := st.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, storepkg.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestEngine_Execute_GateBlocksDeployWithoutFailing(t *testing.T) {
	d, b, st := setup(t)
	provider := &echo.Provider{Responses: []llm.Result{
		{Value: map[string]any{"research": "facts"}, Usage: llm.Usage{CostUSD: 10}},
		{Value: map[string]any{"article": "facts, elaborated"}},
	}}
	exec := &node.Executor{
		Providers: map[string]llm.Provider{"default": provider},
		Tools:     tool.NewRegistry(),
		Gates:     []declaration.GateSpec{{Metric: "cost_usd", Operator: "gt", Threshold: 1, Action: node.ActionBlockDeploy}},
	}
	eng := New(st, exec)

	record, err := eng.Execute(context.Background(), d, b, map[string]any{"topic": "bees"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, storepkg.StatusSucceeded, record.Status)
	assert.True(t, record.BlockDeploy)
}

func TestEngine_Execute_GateFailsRun(t *testing.T) {
	d, b, st := setup(t)
	provider := &echo.Provider{Responses: []llm.Result{
		{Value: map[string]any{"research": "facts"}, Usage: llm.Usage{CostUSD: 10}},
	}}
	exec := &node.Executor{
		Providers: map[string]llm.Provider{"default": provider},
		Tools:     tool.NewRegistry(),
		Gates:     []declaration.GateSpec{{Metric: "cost_usd", Operator: "gt", Threshold: 1, Action: node.ActionFail}},
	}
	eng := New(st, exec)

	record, err := eng.Execute(context.Background(), d, b, map[string]any{"topic": "bees"}, Options{})
	require.Error(t, err)
	assert.Equal(t, storepkg.StatusFailed, record.Status)
	var gateErr *GateError
	assert.ErrorAs(t, err, &gateErr)
}

func TestEngine_Execute_CancelledBetweenNodes(t *testing.T) {
	d, b, st := setup(t)
	provider := &echo.Provider{Responses: []llm.Result{{Value: map[string]any{"research": "facts"}}}}
	exec := &node.Executor{Providers: map[string]llm.Provider{"default": provider}, Tools: tool.NewRegistry()}
	eng := New(st, exec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	record, err := eng.Execute(ctx, d, b, map[string]any{"topic": "bees"}, Options{})
	require.Error(t, err)
	assert.Equal(t, storepkg.StatusCancelled, record.Status)
}
