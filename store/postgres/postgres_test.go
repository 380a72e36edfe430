package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/configurable-agents/engine/store"
)

// Integration tests spin up a real PostgreSQL container. Skipped with
// -short since they need Docker.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("runs_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_CreateGetAndCompletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := store.RunRecord{
		ID: "r1", WorkflowName: "wf", Status: store.StatusPending,
		Inputs: map[string]any{"x": float64(1)}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "wf", got.WorkflowName)
	assert.Equal(t, float64(1), got.Inputs["x"])

	require.NoError(t, s.UpdateCompletion(ctx, "r1", map[string]any{"result": "ok"}, 10, 20, 0.5, 999, false))
	got, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusSucceeded, got.Status)
	assert.Equal(t, "ok", got.Outputs["result"])
	require.NotNil(t, got.CompletedAt)
}

func TestStore_ListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r1", WorkflowName: "wf-a", Status: store.StatusSucceeded, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Create(ctx, store.RunRecord{ID: "r2", WorkflowName: "wf-b", Status: store.StatusFailed, CreatedAt: now.Add(time.Second), UpdatedAt: now}))

	out, err := s.List(ctx, store.Filter{WorkflowName: "wf-a"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}
