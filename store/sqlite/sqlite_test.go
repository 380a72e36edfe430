package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CreateGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()

	rec := store.RunRecord{
		ID: "r1", WorkflowName: "wf", Status: store.StatusPending,
		Inputs: map[string]any{"x": float64(1)}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "wf", got.WorkflowName)
	assert.Equal(t, store.StatusPending, got.Status)
	assert.Equal(t, float64(1), got.Inputs["x"])
}

func TestStore_GetMissing(t *testing.T) {
	s := openTest(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", Status: store.StatusPending, CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, s.UpdateStatus(ctx, "r1", store.StatusFailed, "boom"))
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestStore_UpdateStatus_Missing(t *testing.T) {
	s := openTest(t)
	err := s.UpdateStatus(context.Background(), "nope", store.StatusRunning, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_AppendOutputs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, s.AppendOutputs(ctx, "r1", map[string]any{"a": float64(1)}))
	require.NoError(t, s.AppendOutputs(ctx, "r1", map[string]any{"b": float64(2)}))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got.Outputs["a"])
	assert.Equal(t, float64(2), got.Outputs["b"])
}

func TestStore_UpdateCompletion(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", Status: store.StatusRunning, CreatedAt: now, UpdatedAt: now}))

	require.NoError(t, s.UpdateCompletion(ctx, "r1", map[string]any{"result": "ok"}, 10, 20, 0.5, 1234, true))
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, got.Status)
	assert.Equal(t, "ok", got.Outputs["result"])
	assert.Equal(t, int64(10), got.InputTokens)
	assert.InDelta(t, 0.5, got.CostUSD, 1e-9)
	assert.True(t, got.BlockDeploy)
	require.NotNil(t, got.CompletedAt)
}

func TestStore_List_FiltersAndOrders(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", WorkflowName: "wf-a", Status: store.StatusSucceeded, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r2", WorkflowName: "wf-b", Status: store.StatusFailed, CreatedAt: now.Add(time.Second), UpdatedAt: now}))
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r3", WorkflowName: "wf-a", Status: store.StatusFailed, CreatedAt: now.Add(2 * time.Second), UpdatedAt: now}))

	out, err := s.List(ctx, store.Filter{WorkflowName: "wf-a"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = s.List(ctx, store.Filter{Status: store.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = s.List(ctx, store.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}

func TestStore_ListByAgent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", AgentID: "agent-1", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r2", AgentID: "agent-2", CreatedAt: now, UpdatedAt: now}))

	out, err := s.ListByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}
