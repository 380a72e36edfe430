package experiment

import (
	"context"
	"fmt"
	"sort"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/expstore"
	"github.com/configurable-agents/engine/internal/stats"
	"github.com/configurable-agents/engine/node"
)

// VariantResult is one variant's aggregate over a single metric (spec
// §4.13 evaluate()).
type VariantResult struct {
	VariantName string
	Mean        float64
	P50         float64
	P90         float64
	P95         float64
	P99         float64
	Count       int
}

// Evaluate computes, per variant, the mean and nearest-rank percentile
// distribution (p50/p90/p95/p99) of metric across every run logged under
// experimentName, and returns variants ranked ascending by mean (lowest
// first). Ties are broken by variant_name ascending (spec §9 Open
// Question (b)). Callers wanting "best" under a maximized metric should
// read from the end of the slice.
func Evaluate(ctx context.Context, st expstore.Store, experimentName, metric string) ([]VariantResult, error) {
	runs, err := st.ListRuns(ctx, experimentName, expstore.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", experimentName, err)
	}

	byVariant := make(map[string][]float64)
	for _, r := range runs {
		v, ok := r.Metrics[metric]
		if !ok {
			continue
		}
		byVariant[r.VariantName] = append(byVariant[r.VariantName], v)
	}

	results := make([]VariantResult, 0, len(byVariant))
	for name, values := range byVariant {
		sort.Float64s(values)
		results = append(results, VariantResult{
			VariantName: name,
			Mean:        stats.Mean(values),
			P50:         stats.Percentile(values, 50),
			P90:         stats.Percentile(values, 90),
			P95:         stats.Percentile(values, 95),
			P99:         stats.Percentile(values, 99),
			Count:       len(values),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Mean != results[j].Mean {
			return results[i].Mean < results[j].Mean
		}
		return results[i].VariantName < results[j].VariantName
	})
	return results, nil
}

// GateFinding is one experiment-level gate that fired against a variant's
// aggregate.
type GateFinding struct {
	VariantName string
	Action      node.GateAction
}

// EvaluateGates applies every gate in gates whose Metric matches the
// metric results were computed over, using each variant's mean as the
// gate's input value (spec §4.13: "gates defined on experiment-level
// metrics are evaluated against aggregates using the same action
// semantics as node gates").
func EvaluateGates(gates []declaration.GateSpec, metric string, results []VariantResult) []GateFinding {
	var findings []GateFinding
	for _, g := range gates {
		if g.Metric != metric {
			continue
		}
		for _, r := range results {
			if action, fired := node.EvaluateAggregateGate(g, r.Mean); fired {
				findings = append(findings, GateFinding{VariantName: r.VariantName, Action: action})
			}
		}
	}
	return findings
}
