// Package echo provides a deterministic llm.Provider for tests and offline
// runs: it never calls a network API, echoing configured responses back in
// call order. Adapted from the teacher's MockChatModel.
package echo

import (
	"context"
	"sync"

	"github.com/configurable-agents/engine/llm"
)

// Provider is a thread-safe, scriptable llm.Provider.
type Provider struct {
	// Responses is the sequence returned in order; once exhausted, the
	// last response repeats.
	Responses []llm.Result

	// Err, if set, is returned instead of a response.
	Err error

	mu    sync.Mutex
	calls []llm.Request
	next  int
}

// Invoke implements llm.Provider.
func (p *Provider) Invoke(ctx context.Context, req llm.Request) (llm.Result, error) {
	if err := ctx.Err(); err != nil {
		return llm.Result{}, &llm.TimeoutError{Provider: "echo", Cause: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)

	if p.Err != nil {
		return llm.Result{}, p.Err
	}
	if len(p.Responses) == 0 {
		return llm.Result{}, nil
	}

	idx := p.next
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	} else {
		p.next++
	}
	return p.Responses[idx], nil
}

// Calls returns the recorded request history.
func (p *Provider) Calls() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// Reset clears call history and rewinds to the first response.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.next = 0
}
