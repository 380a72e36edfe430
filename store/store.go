// Package store defines the run repository interface (C10, spec §4.10):
// a storage-backend-agnostic record of every workflow run, its status
// transitions, outputs, and accounting. Two backends are required: an
// embedded store for single-node installs (store/sqlite) and an external
// relational store for multi-process installs (store/postgres). An
// in-memory implementation (store/memory) backs tests and ephemeral runs.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run id does not exist.
var ErrNotFound = errors.New("run not found")

// Status values a RunRecord moves through. pending -> running -> one of
// completed/failed/cancelled (spec §4.9). The terminal success value is
// "completed", not "succeeded" - spec §3's RunRecord.status enum and §8's
// scenario checks both key off "completed".
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunRecord is the durable record of one workflow execution.
type RunRecord struct {
	ID             string
	WorkflowName   string
	Status         string
	ConfigSnapshot string // the source declaration document, verbatim
	Inputs         map[string]any
	Outputs        map[string]any
	Error          string

	InputTokens int64
	OutputTokens int64
	CostUSD     float64
	DurationMS  int64

	// AgentID is set when this run was dispatched to a remote agent (C12).
	AgentID string

	// ParentRunID links a restart to the run whose config_snapshot it
	// re-materialized (spec §4.9 "Restart").
	ParentRunID string

	// ExperimentName/VariantName tag runs created by the A/B experiment
	// runner (C13).
	ExperimentName string
	VariantName    string

	// BlockDeploy is set when a BLOCK_DEPLOY gate fired during this run;
	// it does not abort the run (spec §4.8 step 6).
	BlockDeploy bool

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Filter narrows List results. Zero-value fields are unconstrained.
type Filter struct {
	WorkflowName   string
	Status         string
	ExperimentName string
	Limit          int
}

// Store is the run repository contract every backend implements.
type Store interface {
	Create(ctx context.Context, record RunRecord) error
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	AppendOutputs(ctx context.Context, id string, partial map[string]any) error
	UpdateCompletion(ctx context.Context, id string, outputs map[string]any, inputTokens, outputTokens int64, costUSD float64, durationMS int64, blockDeploy bool) error
	Get(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, filter Filter) ([]RunRecord, error)
	ListByAgent(ctx context.Context, agentID string) ([]RunRecord, error)
}
