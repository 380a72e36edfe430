package agentreg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisBackend_Integration exercises RedisBackend against a real Redis
// server. Set TEST_REDIS_ADDR (e.g. "localhost:6379") to run it.
func TestRedisBackend_Integration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("skipping Redis integration test: set TEST_REDIS_ADDR to run")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	b := NewRedisBackend(client)
	t.Cleanup(func() {
		_ = b.Delete(ctx, "integration-agent")
	})

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, b.Upsert(ctx, Agent{
		ID: "integration-agent", Name: "worker", URL: "http://localhost:9100",
		Metadata: map[string]string{"region": "us-east"}, TTLSeconds: 30,
		RegisteredAt: now, LastHeartbeat: now,
	}))

	got, err := b.Get(ctx, "integration-agent")
	require.NoError(t, err)
	assert.Equal(t, "worker", got.Name)
	assert.Equal(t, "us-east", got.Metadata["region"])

	later := now.Add(time.Minute)
	require.NoError(t, b.Heartbeat(ctx, "integration-agent", later))
	got, err = b.Get(ctx, "integration-agent")
	require.NoError(t, err)
	assert.True(t, got.LastHeartbeat.Equal(later))

	all, err := b.List(ctx)
	require.NoError(t, err)
	found := false
	for _, a := range all {
		if a.ID == "integration-agent" {
			found = true
		}
	}
	assert.True(t, found)
}
