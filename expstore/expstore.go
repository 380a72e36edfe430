// Package expstore defines the experiment store interface the A/B runner
// (experiment) and the dashboard read from (C14, spec §4.14). The
// concrete backend is an external tracking service and may be
// unavailable at runtime; callers are expected to treat that as a soft
// error rather than failing the whole request.
package expstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is the sentinel wrapped around any error surfaced by a
// Store backend, so that dashboard handlers can detect it with
// errors.Is and render a degraded view instead of a 500.
var ErrUnavailable = errors.New("experiment store unavailable")

// ExperimentRun is one tagged invocation of a variant (spec §3
// ExperimentRun).
type ExperimentRun struct {
	ExperimentName string
	VariantName    string
	RunID          string
	Metrics        map[string]float64
	StartedAt      time.Time
	Status         string
}

// Filter narrows ListRuns. An empty VariantName matches every variant.
type Filter struct {
	VariantName string
}

// Aggregate is the per-variant statistic bundle evaluate() computes.
type Aggregate struct {
	Mean  float64
	P50   float64
	P90   float64
	P95   float64
	P99   float64
	Count int
}

// Store is the abstract experiment tracking backend (spec §4.14).
type Store interface {
	LogRun(ctx context.Context, run ExperimentRun) error
	ListExperiments(ctx context.Context) ([]string, error)
	ListRuns(ctx context.Context, experimentName string, filter Filter) ([]ExperimentRun, error)
	GetAggregate(ctx context.Context, experimentName, metric string) (Aggregate, error)
}
