package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/store"
)

func TestStore_CreateGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := store.RunRecord{ID: "r1", WorkflowName: "wf", Status: store.StatusPending}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "wf", got.WorkflowName)
	assert.Equal(t, store.StatusPending, got.Status)
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", Status: store.StatusPending}))

	require.NoError(t, s.UpdateStatus(ctx, "r1", store.StatusRunning, ""))
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.UpdateStatus(ctx, "r1", store.StatusFailed, "boom"))
	got, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestStore_UpdateStatus_Missing(t *testing.T) {
	s := New()
	err := s.UpdateStatus(context.Background(), "nope", store.StatusRunning, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_AppendOutputs(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1"}))

	require.NoError(t, s.AppendOutputs(ctx, "r1", map[string]any{"a": 1}))
	require.NoError(t, s.AppendOutputs(ctx, "r1", map[string]any{"b": 2}))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got.Outputs)
}

func TestStore_UpdateCompletion(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", Status: store.StatusRunning}))

	require.NoError(t, s.UpdateCompletion(ctx, "r1", map[string]any{"result": "ok"}, 10, 20, 0.5, 1234, true))
	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, got.Status)
	assert.Equal(t, "ok", got.Outputs["result"])
	assert.Equal(t, int64(10), got.InputTokens)
	assert.Equal(t, int64(20), got.OutputTokens)
	assert.InDelta(t, 0.5, got.CostUSD, 1e-9)
	assert.Equal(t, int64(1234), got.DurationMS)
	assert.True(t, got.BlockDeploy)
	require.NotNil(t, got.CompletedAt)
}

func TestStore_List_FiltersAndOrders(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := store.RunRecord{WorkflowName: "wf-a", Status: store.StatusSucceeded}
	require.NoError(t, s.Create(ctx, withID(base, "r1")))
	require.NoError(t, s.Create(ctx, withID(store.RunRecord{WorkflowName: "wf-b", Status: store.StatusFailed}, "r2")))
	require.NoError(t, s.Create(ctx, withID(store.RunRecord{WorkflowName: "wf-a", Status: store.StatusFailed}, "r3")))

	out, err := s.List(ctx, store.Filter{WorkflowName: "wf-a"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = s.List(ctx, store.Filter{Status: store.StatusFailed})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = s.List(ctx, store.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestStore_ListByAgent(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, withID(store.RunRecord{AgentID: "agent-1"}, "r1")))
	require.NoError(t, s.Create(ctx, withID(store.RunRecord{AgentID: "agent-2"}, "r2")))

	out, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	byAgent, err := s.ListByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, "r1", byAgent[0].ID)
}

func withID(r store.RunRecord, id string) store.RunRecord {
	r.ID = id
	return r
}
