// Package webhook implements the generic inbound webhook (C16, spec
// §4.16): HMAC-verified requests enqueue a workflow run onto a bounded
// worker pool and return immediately with the new run's id.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/internal/obslog"
	"github.com/configurable-agents/engine/state"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request
// body, keyed by Dispatcher.Secret.
const SignatureHeader = "X-Agentflow-Signature"

// ErrQueueFull is returned (and mapped to 503) when the worker pool's
// backlog is at capacity.
var ErrQueueFull = errors.New("webhook queue is full")

// Workflow bundles what a dispatcher needs to execute a named workflow:
// its parsed declaration and the state builder derived from it.
type Workflow struct {
	Declaration *declaration.Declaration
	Builder     *state.Builder
}

// Lookup resolves a workflow_name to its Workflow, or reports it unknown.
type Lookup func(workflowName string) (Workflow, bool)

// Dispatcher verifies and enqueues webhook-triggered runs onto a fixed
// pool of worker goroutines reading from a bounded channel (spec §4.16,
// §5 backpressure: reject with 503 rather than grow unbounded).
type Dispatcher struct {
	Engine *engine.Engine
	Lookup Lookup
	Secret string
	Logger *obslog.Logger

	queue chan job
}

type job struct {
	ctx    context.Context
	runID  string
	wf     Workflow
	inputs map[string]any
}

// NewDispatcher starts workers goroutines draining a queue of depth
// queueSize and returns the Dispatcher. Call Close to stop accepting new
// work and let in-flight runs finish.
func NewDispatcher(eng *engine.Engine, lookup Lookup, secret string, logger *obslog.Logger, workers, queueSize int) *Dispatcher {
	if logger == nil {
		logger = obslog.New("info", obslog.FormatConsole)
	}
	d := &Dispatcher{Engine: eng, Lookup: lookup, Secret: secret, Logger: logger, queue: make(chan job, queueSize)}
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	for j := range d.queue {
		record, err := d.Engine.Execute(j.ctx, j.wf.Declaration, j.wf.Builder, j.inputs, engine.Options{RunID: j.runID})
		if err != nil {
			d.Logger.WithRun(j.runID).Error("webhook run failed", "error", err)
			continue
		}
		d.Logger.WithRun(record.ID).Info("webhook run completed", "status", record.Status)
	}
}

// request is the inbound payload shape (spec §4.16).
type request struct {
	WorkflowName string         `json:"workflow_name"`
	Inputs       map[string]any `json:"inputs"`
}

// Handle implements POST /webhooks/generic. Failure modes per spec: an
// invalid signature returns 401, an unknown workflow returns 404, and a
// full queue returns 503. On success it returns 202 with the new run_id.
func (d *Dispatcher) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "could not read request body"})
	}

	if d.Secret != "" {
		if !d.verify(c.Request().Header.Get(SignatureHeader), body) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		}
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	wf, ok := d.Lookup(req.WorkflowName)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown workflow %q", req.WorkflowName)})
	}

	runID := uuid.NewString()
	select {
	case d.queue <- job{ctx: context.Background(), runID: runID, wf: wf, inputs: req.Inputs}:
		return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
	default:
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": ErrQueueFull.Error()})
	}
}

// verify reports whether signature is the hex HMAC-SHA256 of body under
// d.Secret, using a constant-time comparison.
func (d *Dispatcher) verify(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(d.Secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(want))
}
