package experiment

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/expstore"
)

// ApplyBest rewrites the declaration at workflowPath with the winning
// variant's prompt, after writing a timestamped backup of the original
// file (spec §4.13 apply_best). The winner is the variant ranked first by
// Evaluate for metric, i.e. the lowest mean; pass minimize=false to treat
// the highest mean as the winner instead.
func ApplyBest(ctx context.Context, st expstore.Store, workflowPath, experimentName, metric string, minimize bool) (winner string, err error) {
	results, err := Evaluate(ctx, st, experimentName, metric)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no runs recorded for experiment %s", experimentName)
	}

	best := results[0]
	if !minimize {
		best = results[len(results)-1]
	}

	d, err := declaration.Load(workflowPath)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", workflowPath, err)
	}
	if d.Optimization == nil || d.Optimization.ABTest == nil {
		return "", fmt.Errorf("%s has no ab_test block to apply a winner into", workflowPath)
	}

	var variant *declaration.VariantSpec
	for i, v := range d.Optimization.ABTest.Variants {
		if v.Name == best.VariantName {
			variant = &d.Optimization.ABTest.Variants[i]
			break
		}
	}
	if variant == nil {
		return "", fmt.Errorf("winning variant %s not found in %s's ab_test block", best.VariantName, workflowPath)
	}

	for i, n := range d.Nodes {
		if n.ID == variant.NodeID {
			d.Nodes[i].Prompt = variant.Prompt
		}
	}

	original, err := os.ReadFile(workflowPath)
	if err != nil {
		return "", fmt.Errorf("read %s for backup: %w", workflowPath, err)
	}
	backupPath := fmt.Sprintf("%s.bak.%s", workflowPath, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.WriteFile(backupPath, original, 0o644); err != nil {
		return "", fmt.Errorf("write backup %s: %w", backupPath, err)
	}

	rewritten, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal rewritten declaration: %w", err)
	}
	if err := os.WriteFile(workflowPath, rewritten, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", workflowPath, err)
	}

	return best.VariantName, nil
}
