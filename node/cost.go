package node

import (
	"sync"
	"time"
)

// Call records one node's contribution to a run's cost ledger.
type Call struct {
	NodeID       string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
}

// CostTracker accumulates per-run LLM cost across every node execution,
// adapted from the engine's run-level cost tracker: thread-safe, with a
// cumulative total and a per-node breakdown for reporting (spec §4.9,
// `report costs`).
type CostTracker struct {
	mu         sync.RWMutex
	calls      []Call
	totalCost  float64
	nodeCosts  map[string]float64
	inputToks  int64
	outputToks int64
}

// NewCostTracker returns an empty tracker.
func NewCostTracker() *CostTracker {
	return &CostTracker{nodeCosts: make(map[string]float64)}
}

// Record appends one node's metrics to the ledger.
func (t *CostTracker) Record(nodeID string, m Metrics, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{
		NodeID:       nodeID,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		CostUSD:      m.CostUSD,
		Timestamp:    at,
	})
	t.totalCost += m.CostUSD
	t.nodeCosts[nodeID] += m.CostUSD
	t.inputToks += int64(m.InputTokens)
	t.outputToks += int64(m.OutputTokens)
}

// TotalCost returns the cumulative cost recorded so far.
func (t *CostTracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalCost
}

// CostByNode returns a copy of the per-node cost breakdown.
func (t *CostTracker) CostByNode() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.nodeCosts))
	for k, v := range t.nodeCosts {
		out[k] = v
	}
	return out
}

// Calls returns a copy of every recorded call, in order.
func (t *CostTracker) Calls() []Call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// TokenUsage returns cumulative input/output token counts.
func (t *CostTracker) TokenUsage() (input, output int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inputToks, t.outputToks
}
