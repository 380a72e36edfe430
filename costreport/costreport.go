// Package costreport implements the `report costs` CLI command (spec
// §6): aggregate store.RunRecord cost accounting by time bucket and
// workflow, then render as CSV or JSON. The example corpus has no
// cost-reporting analogue to ground this on directly; it is built in
// the style of this module's own store/node packages (plain structs,
// explicit error returns, no framework).
package costreport

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/configurable-agents/engine/store"
)

// Period buckets a run's CreatedAt into a reporting period. Daily,
// Weekly, and Monthly are the granularities spec §6's `--period` flag
// names; Total collapses every run into a single all-time bucket.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodTotal   Period = "total"
)

// Options narrows which runs Generate aggregates and how it buckets
// them. Zero-value Start/End means unbounded; zero-value Workflow
// matches every workflow.
type Options struct {
	Period   Period
	Start    time.Time
	End      time.Time
	Workflow string
}

// Entry is one (period, workflow) aggregate row.
type Entry struct {
	Period       string
	WorkflowName string
	RunCount     int
	TotalCostUSD float64
	InputTokens  int64
	OutputTokens int64
}

// Generate reads every run matching opts.Workflow from st, filters by
// [opts.Start, opts.End) when either bound is set, buckets the
// survivors by opts.Period, and returns aggregate rows sorted by period
// then workflow name.
func Generate(ctx context.Context, st store.Store, opts Options) ([]Entry, error) {
	runs, err := st.List(ctx, store.Filter{WorkflowName: opts.Workflow})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	period := opts.Period
	if period == "" {
		period = PeriodTotal
	}

	type key struct{ period, workflow string }
	totals := make(map[key]*Entry)

	for _, r := range runs {
		if !opts.Start.IsZero() && r.CreatedAt.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !r.CreatedAt.Before(opts.End) {
			continue
		}

		bucket := bucketLabel(period, r.CreatedAt)
		k := key{period: bucket, workflow: r.WorkflowName}
		e, ok := totals[k]
		if !ok {
			e = &Entry{Period: bucket, WorkflowName: r.WorkflowName}
			totals[k] = e
		}
		e.RunCount++
		e.TotalCostUSD += r.CostUSD
		e.InputTokens += r.InputTokens
		e.OutputTokens += r.OutputTokens
	}

	out := make([]Entry, 0, len(totals))
	for _, e := range totals {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].WorkflowName < out[j].WorkflowName
	})
	return out, nil
}

func bucketLabel(period Period, at time.Time) string {
	switch period {
	case PeriodDaily:
		return at.UTC().Format("2006-01-02")
	case PeriodWeekly:
		year, week := at.UTC().ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonthly:
		return at.UTC().Format("2006-01")
	default:
		return "total"
	}
}
