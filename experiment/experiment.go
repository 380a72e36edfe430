// Package experiment drives the A/B experiment runner (C13, spec §4.13):
// given a declaration's optimization.ab_test block, it runs each variant
// run_count times through the engine under a prompt override, and tags
// every resulting run into the experiment store for later evaluation.
package experiment

import (
	"context"
	"fmt"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/expstore"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store"
)

// Runner executes an A/B test and records its runs.
type Runner struct {
	Engine  *engine.Engine
	Builder *state.Builder
	Store   expstore.Store
}

// Run executes every variant of d.Optimization.ABTest run_count times and
// logs each run into the experiment store, tagged with
// {experiment_name, variant_name}. It returns every produced RunRecord in
// execution order.
func (r *Runner) Run(ctx context.Context, d *declaration.Declaration, inputs map[string]any) ([]store.RunRecord, error) {
	ab := d.Optimization.ABTest
	if ab == nil {
		return nil, fmt.Errorf("declaration %s has no ab_test configured", d.Flow.Name)
	}

	var records []store.RunRecord
	for _, variant := range ab.Variants {
		overridden, err := withVariantPrompt(d, variant)
		if err != nil {
			return records, err
		}

		for i := 0; i < ab.RunCount; i++ {
			record, err := r.Engine.Execute(ctx, overridden, r.Builder, inputs, engine.Options{
				ExperimentName: ab.ExperimentName,
				VariantName:    variant.Name,
			})
			records = append(records, record)
			if err != nil {
				return records, fmt.Errorf("run %d of variant %s: %w", i, variant.Name, err)
			}

			if logErr := r.Store.LogRun(ctx, expstore.ExperimentRun{
				ExperimentName: ab.ExperimentName,
				VariantName:    variant.Name,
				RunID:          record.ID,
				Metrics: map[string]float64{
					"cost_usd":      record.CostUSD,
					"input_tokens":  float64(record.InputTokens),
					"output_tokens": float64(record.OutputTokens),
					"duration_ms":   float64(record.DurationMS),
				},
				StartedAt: record.CreatedAt,
				Status:    record.Status,
			}); logErr != nil {
				return records, fmt.Errorf("log run %s: %w", record.ID, logErr)
			}
		}
	}
	return records, nil
}

// withVariantPrompt returns a shallow copy of d with variant.NodeID's
// prompt replaced by variant.Prompt. d itself is left untouched so the
// same base declaration can be reused across variants.
func withVariantPrompt(d *declaration.Declaration, variant declaration.VariantSpec) (*declaration.Declaration, error) {
	clone := *d
	clone.Nodes = make([]declaration.NodeSpec, len(d.Nodes))
	copy(clone.Nodes, d.Nodes)

	found := false
	for i, n := range clone.Nodes {
		if n.ID == variant.NodeID {
			n.Prompt = variant.Prompt
			clone.Nodes[i] = n
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("variant %s references unknown node %s", variant.Name, variant.NodeID)
	}
	return &clone, nil
}
