package experiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/expstore"
	"github.com/configurable-agents/engine/llm"
	"github.com/configurable-agents/engine/llm/echo"
	"github.com/configurable-agents/engine/node"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store/memory"
	"github.com/configurable-agents/engine/tool"
)

const abTestDoc = `
schema_version: "1.0"
flow:
  name: prompt-length
state:
  topic:
    type: str
    required: true
  article:
    type: str
nodes:
  - id: write
    prompt: "short prompt: {topic}"
    outputs: [article]
    output_schema:
      article: str
edges:
  - from: START
    to: write
  - from: write
    to: END
optimization:
  ab_test:
    experiment_name: prompt-length
    run_count: 2
    variants:
      - name: short
        prompt: "short: {topic}"
        node_id: write
      - name: long
        prompt: "much longer and more detailed: {topic}"
        node_id: write
`

func setup(t *testing.T) (*declaration.Declaration, *Runner, *expstore.MemoryStore) {
	t.Helper()
	d, err := declaration.Parse([]byte(abTestDoc), declaration.FormatYAML)
	require.NoError(t, err)
	b, err := state.NewBuilder(d)
	require.NoError(t, err)

	provider := &echo.Provider{Responses: []llm.Result{
		{Value: map[string]any{"article": "a"}, Usage: llm.Usage{CostUSD: 0.1}},
		{Value: map[string]any{"article": "b"}, Usage: llm.Usage{CostUSD: 0.2}},
		{Value: map[string]any{"article": "c"}, Usage: llm.Usage{CostUSD: 0.4}},
		{Value: map[string]any{"article": "d"}, Usage: llm.Usage{CostUSD: 0.8}},
	}}
	exec := &node.Executor{Providers: map[string]llm.Provider{"default": provider}, Tools: tool.NewRegistry()}
	eng := engine.New(memory.New(), exec)

	es := expstore.NewMemoryStore()
	return d, &Runner{Engine: eng, Builder: b, Store: es}, es
}

func TestRunner_Run_ExecutesEveryVariantRunCountTimes(t *testing.T) {
	d, runner, es := setup(t)

	records, err := runner.Run(context.Background(), d, map[string]any{"topic": "bees"})
	require.NoError(t, err)
	assert.Len(t, records, 4)

	runs, err := es.ListRuns(context.Background(), "prompt-length", expstore.Filter{})
	require.NoError(t, err)
	assert.Len(t, runs, 4)

	shortRuns, err := es.ListRuns(context.Background(), "prompt-length", expstore.Filter{VariantName: "short"})
	require.NoError(t, err)
	assert.Len(t, shortRuns, 2)
}

func TestRunner_Run_NoABTestConfigured(t *testing.T) {
	d, runner, _ := setup(t)
	d.Optimization.ABTest = nil

	_, err := runner.Run(context.Background(), d, map[string]any{"topic": "bees"})
	assert.Error(t, err)
}

func TestEvaluate_RanksAscendingByMeanThenVariantName(t *testing.T) {
	d, runner, es := setup(t)

	_, err := runner.Run(context.Background(), d, map[string]any{"topic": "bees"})
	require.NoError(t, err)

	results, err := Evaluate(context.Background(), es, "prompt-length", "cost_usd")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "short", results[0].VariantName, "short variant used the cheaper echo responses")
	assert.Less(t, results[0].Mean, results[1].Mean)
}

func TestEvaluateGates_FlagsBreachingVariant(t *testing.T) {
	results := []VariantResult{
		{VariantName: "short", Mean: 0.15},
		{VariantName: "long", Mean: 0.60},
	}
	gates := []declaration.GateSpec{
		{Metric: "cost_usd", Operator: "gt", Threshold: 0.5, Action: node.ActionBlockDeploy},
	}

	findings := EvaluateGates(gates, "cost_usd", results)
	require.Len(t, findings, 1)
	assert.Equal(t, "long", findings[0].VariantName)
	assert.Equal(t, node.ActionBlockDeploy, findings[0].Action.Action)
}

func TestApplyBest_RewritesWinningPromptWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(abTestDoc), 0o644))

	es := expstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, es.LogRun(ctx, expstore.ExperimentRun{ExperimentName: "prompt-length", VariantName: "short", Metrics: map[string]float64{"cost_usd": 0.1}}))
	require.NoError(t, es.LogRun(ctx, expstore.ExperimentRun{ExperimentName: "prompt-length", VariantName: "long", Metrics: map[string]float64{"cost_usd": 0.9}}))

	winner, err := ApplyBest(ctx, es, path, "prompt-length", "cost_usd", true)
	require.NoError(t, err)
	assert.Equal(t, "short", winner)

	rewritten, err := declaration.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "short: {topic}", rewritten.Nodes[0].Prompt)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	backups := 0
	for _, e := range entries {
		if e.Name() != "workflow.yaml" {
			backups++
		}
	}
	assert.Equal(t, 1, backups, "expected exactly one timestamped backup file")
}
