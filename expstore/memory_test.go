package expstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LogAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.LogRun(ctx, ExperimentRun{
		ExperimentName: "prompt-length", VariantName: "a", RunID: "r1",
		Metrics: map[string]float64{"cost_usd": 0.10}, StartedAt: time.Now(), Status: "succeeded",
	}))
	require.NoError(t, s.LogRun(ctx, ExperimentRun{
		ExperimentName: "prompt-length", VariantName: "b", RunID: "r2",
		Metrics: map[string]float64{"cost_usd": 0.20}, StartedAt: time.Now(), Status: "succeeded",
	}))

	experiments, err := s.ListExperiments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prompt-length"}, experiments)

	runs, err := s.ListRuns(ctx, "prompt-length", Filter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	filtered, err := s.ListRuns(ctx, "prompt-length", Filter{VariantName: "a"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "r1", filtered[0].RunID)
}

func TestMemoryStore_GetAggregate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, v := range []float64{1, 2, 3, 4, 5} {
		require.NoError(t, s.LogRun(ctx, ExperimentRun{
			ExperimentName: "exp", VariantName: "a", Metrics: map[string]float64{"cost_usd": v},
		}))
	}

	agg, err := s.GetAggregate(ctx, "exp", "cost_usd")
	require.NoError(t, err)
	assert.Equal(t, 3.0, agg.Mean)
	assert.Equal(t, 5, agg.Count)
	assert.Equal(t, 3.0, agg.P50)
}

func TestGuard_WrapsErrors(t *testing.T) {
	g := NewGuard(failingStore{})
	ctx := context.Background()

	_, err := g.ListExperiments(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = g.ListRuns(ctx, "x", Filter{})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = g.GetAggregate(ctx, "x", "cost_usd")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = g.LogRun(ctx, ExperimentRun{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

type failingStore struct{}

func (failingStore) LogRun(context.Context, ExperimentRun) error { return assertError }
func (failingStore) ListExperiments(context.Context) ([]string, error) {
	return nil, assertError
}
func (failingStore) ListRuns(context.Context, string, Filter) ([]ExperimentRun, error) {
	return nil, assertError
}
func (failingStore) GetAggregate(context.Context, string, string) (Aggregate, error) {
	return Aggregate{}, assertError
}

var assertError = errorString("backend down")

type errorString string

func (e errorString) Error() string { return string(e) }
