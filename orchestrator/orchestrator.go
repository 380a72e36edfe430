// Package orchestrator drives workflow execution on a remote agent (C12,
// spec §4.12): fetch its input schema, dispatch a run, and unify the
// result into the same store.Store history local runs use.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/configurable-agents/engine/agentreg"
	"github.com/configurable-agents/engine/node"
	"github.com/configurable-agents/engine/store"
)

// ErrAgentUnreachable is recorded as the run error when the remote agent's
// URL cannot be reached at all (connection refused, DNS failure, timeout).
var ErrAgentUnreachable = errors.New("AgentUnreachable")

const maxRetries = 3

// SchemaDescriptor is the remote agent's expected-inputs descriptor,
// returned by GET {url}/schema (spec §6 Agent protocol).
type SchemaDescriptor struct {
	Workflow string            `json:"workflow"`
	Inputs   map[string]string `json:"inputs"`
	Outputs  []string          `json:"outputs"`
}

// Orchestrator dispatches runs to remote agents registered in agentreg.
type Orchestrator struct {
	Agents *agentreg.Registry
	Store  store.Store
	Client *http.Client
	// Rand and Clock exist for deterministic backoff tests; both default
	// when nil.
	Rand  *rand.Rand
	Clock func() time.Time
}

func (o *Orchestrator) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

// FetchSchema issues GET {url}/schema against the agent registered under
// agentID.
func (o *Orchestrator) FetchSchema(ctx context.Context, agentID string) (SchemaDescriptor, error) {
	agent, err := o.Agents.Get(ctx, agentID)
	if err != nil {
		return SchemaDescriptor{}, fmt.Errorf("resolve agent %s: %w", agentID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, agent.URL+"/schema", nil)
	if err != nil {
		return SchemaDescriptor{}, fmt.Errorf("build schema request: %w", err)
	}
	resp, err := o.client().Do(req)
	if err != nil {
		return SchemaDescriptor{}, fmt.Errorf("%w: %v", ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SchemaDescriptor{}, fmt.Errorf("agent %s returned %d fetching schema", agentID, resp.StatusCode)
	}

	var out SchemaDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return SchemaDescriptor{}, fmt.Errorf("decode schema response: %w", err)
	}
	return out, nil
}

// ExecuteOn creates a local RunRecord stamped with agentID, dispatches
// inputs to POST {url}/run, retries on 5xx up to maxRetries with
// exponential backoff (reusing node.ComputeBackoff), and records the
// outcome. The returned RunRecord always reflects the final stored state,
// whether or not err is nil.
func (o *Orchestrator) ExecuteOn(ctx context.Context, agentID, workflowName string, inputs map[string]any) (store.RunRecord, error) {
	agent, err := o.Agents.Get(ctx, agentID)
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("resolve agent %s: %w", agentID, err)
	}

	now := o.now()
	record := store.RunRecord{
		ID:           uuid.NewString(),
		WorkflowName: workflowName,
		Status:       store.StatusPending,
		Inputs:       inputs,
		AgentID:      agentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.Store.Create(ctx, record); err != nil {
		return record, fmt.Errorf("create run: %w", err)
	}
	if err := o.Store.UpdateStatus(ctx, record.ID, store.StatusRunning, ""); err != nil {
		return record, fmt.Errorf("mark run running: %w", err)
	}
	record.Status = store.StatusRunning

	outputs, callErr := o.dispatch(ctx, agent.URL, inputs)
	if callErr != nil {
		_ = o.Store.UpdateStatus(ctx, record.ID, store.StatusFailed, callErr.Error())
		record.Status = store.StatusFailed
		record.Error = callErr.Error()
		return record, callErr
	}

	if err := o.Store.UpdateCompletion(ctx, record.ID, outputs, 0, 0, 0, time.Since(now).Milliseconds(), false); err != nil {
		return record, fmt.Errorf("mark run completed: %w", err)
	}
	record.Status = store.StatusSucceeded
	record.Outputs = outputs
	return record, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, url string, inputs map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{"inputs": inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal inputs: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := node.ComputeBackoff(attempt-1, 500*time.Millisecond, 10*time.Second, o.Rand)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/run", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build run request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAgentUnreachable, err)
		}

		outputs, retry, callErr := decodeRunResponse(resp)
		if !retry {
			return outputs, callErr
		}
		lastErr = callErr
	}
	return nil, fmt.Errorf("agent exhausted %d retries: %w", maxRetries, lastErr)
}

func decodeRunResponse(resp *http.Response) (outputs map[string]any, retry bool, err error) {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out map[string]any
		if jsonErr := json.Unmarshal(data, &out); jsonErr != nil {
			return nil, false, fmt.Errorf("decode run response: %w", jsonErr)
		}
		return out, false, nil
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("agent returned %d: %s", resp.StatusCode, data)
	default:
		return nil, false, fmt.Errorf("agent rejected run with %d: %s", resp.StatusCode, data)
	}
}
