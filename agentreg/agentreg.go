// Package agentreg is the remote-agent membership registry (C11, spec
// §4.11): TTL-based liveness, computed at read time rather than swept, so a
// registry outage never silently drops a still-healthy agent's record.
package agentreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound is returned when agent_id has no record.
var ErrNotFound = errors.New("agent not registered")

// Agent is one remote agent's membership record.
type Agent struct {
	ID            string
	Name          string
	URL           string
	Metadata      map[string]string
	TTLSeconds    int
	RegisteredAt  time.Time
	LastHeartbeat time.Time
}

// Alive reports liveness computed at read time: now - LastHeartbeat <= TTL.
func (a Agent) Alive(now time.Time) bool {
	return now.Sub(a.LastHeartbeat) <= time.Duration(a.TTLSeconds)*time.Second
}

// Record pairs an Agent with its derived liveness for list_agents results.
type Record struct {
	Agent Agent
	Alive bool
}

// Filter narrows ListAgents. AliveOnly, when true, excludes dead records.
type Filter struct {
	AliveOnly bool
}

// Backend is the storage contract a registry implementation fulfills.
// Separated from Registry so both the in-process map backend and the Redis
// backend can be selected behind the same API (AGENT_REGISTRY_BACKEND).
type Backend interface {
	Upsert(ctx context.Context, a Agent) error
	Heartbeat(ctx context.Context, agentID string, at time.Time) error
	Delete(ctx context.Context, agentID string) error
	Get(ctx context.Context, agentID string) (Agent, error)
	List(ctx context.Context) ([]Agent, error)
}

// Registry exposes the C11 operations over a Backend, adding the
// best-effort HTTP health probe that no backend needs to implement itself.
type Registry struct {
	backend Backend
	client  *http.Client
	now     func() time.Time
}

// New wraps backend with the registry operations. client defaults to
// http.DefaultClient if nil.
func New(backend Backend, client *http.Client) *Registry {
	if client == nil {
		client = http.DefaultClient
	}
	return &Registry{backend: backend, client: client, now: time.Now}
}

// Register upserts an agent record, setting registered_at and
// last_heartbeat to now (spec §4.11).
func (r *Registry) Register(ctx context.Context, id, name, url string, metadata map[string]string, ttlSeconds int) error {
	now := r.now()
	return r.backend.Upsert(ctx, Agent{
		ID: id, Name: name, URL: url, Metadata: metadata, TTLSeconds: ttlSeconds,
		RegisteredAt: now, LastHeartbeat: now,
	})
}

// Heartbeat refreshes last_heartbeat; it creates no new record.
func (r *Registry) Heartbeat(ctx context.Context, agentID string) error {
	if _, err := r.backend.Get(ctx, agentID); err != nil {
		return err
	}
	return r.backend.Heartbeat(ctx, agentID, r.now())
}

// Deregister removes the record for agentID, returning ErrNotFound when
// there is none.
func (r *Registry) Deregister(ctx context.Context, agentID string) error {
	if _, err := r.backend.Get(ctx, agentID); err != nil {
		return err
	}
	return r.backend.Delete(ctx, agentID)
}

// ListAgents returns every record with a derived alive flag, computed at
// read time (never cached), optionally filtered to alive-only.
func (r *Registry) ListAgents(ctx context.Context, filter Filter) ([]Record, error) {
	agents, err := r.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	now := r.now()
	out := make([]Record, 0, len(agents))
	for _, a := range agents {
		alive := a.Alive(now)
		if filter.AliveOnly && !alive {
			continue
		}
		out = append(out, Record{Agent: a, Alive: alive})
	}
	return out, nil
}

// HealthProbe issues a best-effort GET {url}/health. It never mutates
// last_heartbeat — liveness is a heartbeat concept, health is a separate
// signal the orchestrator/dashboard can surface alongside it.
func (r *Registry) HealthProbe(ctx context.Context, agentID string) (healthy bool, body string, err error) {
	a, err := r.backend.Get(ctx, agentID)
	if err != nil {
		return false, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL+"/health", nil)
	if err != nil {
		return false, "", fmt.Errorf("build health request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false, "", nil // unreachable is a result, not a registry error
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode >= 200 && resp.StatusCode < 300, string(data), nil
}

// marshalMetadata/unmarshalMetadata are shared helpers for backends that
// store Agent as a flat string map (e.g. Redis hashes).
func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	return string(data), err
}

func unmarshalMetadata(s string) (map[string]string, error) {
	out := map[string]string{}
	if s == "" {
		return out, nil
	}
	return out, json.Unmarshal([]byte(s), &out)
}
