// Redis-backed Backend for multi-process installs, where the dashboard,
// orchestrator, and CLI each need to see the same agent membership without
// a shared process. Selected via AGENT_REGISTRY_BACKEND=redis.
package agentreg

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisAgentsSet = "agentreg:agents"
	redisAgentKey  = "agentreg:agent:"
)

// RedisBackend stores each agent as a hash, with a set of ids for listing.
// Grounded on the pack's Redis client conventions (hash-per-record,
// set-of-ids for enumeration) rather than go-redis's JSON module, since
// plain hashes need no extra server module.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing *redis.Client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Upsert implements Backend.
func (b *RedisBackend) Upsert(ctx context.Context, a Agent) error {
	meta, err := marshalMetadata(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	key := redisAgentKey + a.ID
	fields := map[string]any{
		"id":             a.ID,
		"name":           a.Name,
		"url":            a.URL,
		"metadata":       meta,
		"ttl_seconds":    a.TTLSeconds,
		"registered_at":  a.RegisteredAt.UTC().Format(time.RFC3339Nano),
		"last_heartbeat": a.LastHeartbeat.UTC().Format(time.RFC3339Nano),
	}
	if err := b.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := b.client.SAdd(ctx, redisAgentsSet, a.ID).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", redisAgentsSet, err)
	}
	return nil
}

// Heartbeat implements Backend.
func (b *RedisBackend) Heartbeat(ctx context.Context, agentID string, at time.Time) error {
	key := redisAgentKey + agentID
	exists, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("exists %s: %w", key, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	if err := b.client.HSet(ctx, key, "last_heartbeat", at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("hset heartbeat %s: %w", key, err)
	}
	return nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, agentID string) error {
	if err := b.client.Del(ctx, redisAgentKey+agentID).Err(); err != nil {
		return fmt.Errorf("del %s: %w", agentID, err)
	}
	return b.client.SRem(ctx, redisAgentsSet, agentID).Err()
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, agentID string) (Agent, error) {
	key := redisAgentKey + agentID
	fields, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Agent{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return Agent{}, ErrNotFound
	}
	return decodeAgent(fields)
}

// List implements Backend.
func (b *RedisBackend) List(ctx context.Context) ([]Agent, error) {
	ids, err := b.client.SMembers(ctx, redisAgentsSet).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", redisAgentsSet, err)
	}

	out := make([]Agent, 0, len(ids))
	for _, id := range ids {
		a, err := b.Get(ctx, id)
		if err == ErrNotFound {
			continue // set member outlived its hash (e.g. expired via Del racing SAdd)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeAgent(fields map[string]string) (Agent, error) {
	ttl, err := strconv.Atoi(fields["ttl_seconds"])
	if err != nil {
		return Agent{}, fmt.Errorf("parse ttl_seconds: %w", err)
	}
	registeredAt, err := time.Parse(time.RFC3339Nano, fields["registered_at"])
	if err != nil {
		return Agent{}, fmt.Errorf("parse registered_at: %w", err)
	}
	lastHeartbeat, err := time.Parse(time.RFC3339Nano, fields["last_heartbeat"])
	if err != nil {
		return Agent{}, fmt.Errorf("parse last_heartbeat: %w", err)
	}
	metadata, err := unmarshalMetadata(fields["metadata"])
	if err != nil {
		return Agent{}, fmt.Errorf("parse metadata: %w", err)
	}

	return Agent{
		ID:            fields["id"],
		Name:          fields["name"],
		URL:           fields["url"],
		Metadata:      metadata,
		TTLSeconds:    ttl,
		RegisteredAt:  registeredAt,
		LastHeartbeat: lastHeartbeat,
	}, nil
}
