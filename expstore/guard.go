package expstore

import (
	"context"
	"fmt"
)

// Guard wraps a Store so every error it returns is normalized to
// ErrUnavailable. Dashboard read paths check errors.Is(err,
// ErrUnavailable) and render a degraded "Experiment store is temporarily
// unavailable." view rather than a 500 (spec §4.14, §1 graceful-degradation goal).
type Guard struct {
	Store
}

// NewGuard wraps backend in a Guard.
func NewGuard(backend Store) Guard {
	return Guard{Store: backend}
}

func (g Guard) LogRun(ctx context.Context, run ExperimentRun) error {
	if err := g.Store.LogRun(ctx, run); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (g Guard) ListExperiments(ctx context.Context) ([]string, error) {
	out, err := g.Store.ListExperiments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (g Guard) ListRuns(ctx context.Context, experimentName string, filter Filter) ([]ExperimentRun, error) {
	out, err := g.Store.ListRuns(ctx, experimentName, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (g Guard) GetAggregate(ctx context.Context, experimentName, metric string) (Aggregate, error) {
	out, err := g.Store.GetAggregate(ctx, experimentName, metric)
	if err != nil {
		return Aggregate{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
