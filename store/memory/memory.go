// Package memory provides an in-process embedded run repository, for
// single-node installs and tests. Adapted from the teacher's MemStore:
// mutex-protected maps, data lost on process exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/configurable-agents/engine/store"
)

// Store is a thread-safe in-memory store.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]store.RunRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]store.RunRecord)}
}

// Create implements store.Store.
func (s *Store) Create(_ context.Context, record store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

// UpdateStatus implements store.Store.
func (s *Store) UpdateStatus(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	r.Error = errMsg
	r.UpdatedAt = time.Now()
	if status == store.StatusSucceeded || status == store.StatusFailed || status == store.StatusCancelled {
		now := time.Now()
		r.CompletedAt = &now
	}
	s.records[id] = r
	return nil
}

// AppendOutputs implements store.Store.
func (s *Store) AppendOutputs(_ context.Context, id string, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Outputs == nil {
		r.Outputs = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		r.Outputs[k] = v
	}
	r.UpdatedAt = time.Now()
	s.records[id] = r
	return nil
}

// UpdateCompletion implements store.Store.
func (s *Store) UpdateCompletion(_ context.Context, id string, outputs map[string]any, inputTokens, outputTokens int64, costUSD float64, durationMS int64, blockDeploy bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Outputs = outputs
	r.InputTokens = inputTokens
	r.OutputTokens = outputTokens
	r.CostUSD = costUSD
	r.DurationMS = durationMS
	r.BlockDeploy = blockDeploy
	r.Status = store.StatusSucceeded
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
	s.records[id] = r
	return nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, id string) (store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return store.RunRecord{}, store.ErrNotFound
	}
	return r, nil
}

// List implements store.Store.
func (s *Store) List(_ context.Context, filter store.Filter) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.RunRecord, 0, len(s.records))
	for _, r := range s.records {
		if filter.WorkflowName != "" && r.WorkflowName != filter.WorkflowName {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.ExperimentName != "" && r.ExperimentName != filter.ExperimentName {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListByAgent implements store.Store.
func (s *Store) ListByAgent(_ context.Context, agentID string) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.RunRecord, 0)
	for _, r := range s.records {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
