// Package sqlite is the embedded run repository backend (C10, spec §4.10),
// for single-node installs with zero external setup. Adapted from the
// teacher's SQLiteStore: WAL mode, a single writer connection, busy-timeout
// pragma, auto-migration on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/configurable-agents/engine/store"
)

// Store is a SQLite-backed store.Store. A single file holds every run;
// inputs/outputs are serialized as JSON columns since runs carry arbitrary
// workflow-declared state shapes, not a fixed schema.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open creates or opens the database at path and ensures the schema exists.
// Use ":memory:" for an ephemeral database, mainly useful in tests where a
// real file is undesirable.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	const runsTable = `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			status TEXT NOT NULL,
			config_snapshot TEXT NOT NULL DEFAULT '',
			inputs TEXT NOT NULL DEFAULT '{}',
			outputs TEXT NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			agent_id TEXT NOT NULL DEFAULT '',
			parent_run_id TEXT NOT NULL DEFAULT '',
			experiment_name TEXT NOT NULL DEFAULT '',
			variant_name TEXT NOT NULL DEFAULT '',
			block_deploy INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, runsTable); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow_name)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",
		"CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment_name)",
		"CREATE INDEX IF NOT EXISTS idx_runs_agent ON runs(agent_id)",
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, record store.RunRecord) error {
	inputs, err := json.Marshal(record.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	outputs, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	const q = `
		INSERT INTO runs (
			id, workflow_name, status, config_snapshot, inputs, outputs, error,
			input_tokens, output_tokens, cost_usd, duration_ms,
			agent_id, parent_run_id, experiment_name, variant_name, block_deploy,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`
	_, err = s.db.ExecContext(ctx, q,
		record.ID, record.WorkflowName, record.Status, record.ConfigSnapshot,
		string(inputs), string(outputs), record.Error,
		record.InputTokens, record.OutputTokens, record.CostUSD, record.DurationMS,
		record.AgentID, record.ParentRunID, record.ExperimentName, record.VariantName,
		boolToInt(record.BlockDeploy), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateStatus implements store.Store.
func (s *Store) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	now := time.Now()
	var completedAt sql.NullTime
	if status == store.StatusSucceeded || status == store.StatusFailed || status == store.StatusCancelled {
		completedAt = sql.NullTime{Time: now, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, error=?, updated_at=?, completed_at=COALESCE(?, completed_at) WHERE id=?`,
		status, errMsg, now, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return checkAffected(res)
}

// AppendOutputs implements store.Store.
func (s *Store) AppendOutputs(ctx context.Context, id string, partial map[string]any) error {
	row := s.db.QueryRowContext(ctx, `SELECT outputs FROM runs WHERE id=?`, id)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return store.ErrNotFound
		}
		return fmt.Errorf("select outputs: %w", err)
	}

	existing := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &existing); err != nil {
			return fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	for k, v := range partial {
		existing[k] = v
	}

	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE runs SET outputs=?, updated_at=? WHERE id=?`, string(merged), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update outputs: %w", err)
	}
	return checkAffected(res)
}

// UpdateCompletion implements store.Store.
func (s *Store) UpdateCompletion(ctx context.Context, id string, outputs map[string]any, inputTokens, outputTokens int64, costUSD float64, durationMS int64, blockDeploy bool) error {
	marshalled, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			outputs=?, input_tokens=?, output_tokens=?, cost_usd=?, duration_ms=?,
			block_deploy=?, status=?, completed_at=?, updated_at=?
		WHERE id=?`,
		string(marshalled), inputTokens, outputTokens, costUSD, durationMS,
		boolToInt(blockDeploy), store.StatusSucceeded, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update completion: %w", err)
	}
	return checkAffected(res)
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (store.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id=?`, id)
	return scanRun(row)
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]store.RunRecord, error) {
	query := selectColumns + ` WHERE 1=1`
	var args []any
	if filter.WorkflowName != "" {
		query += ` AND workflow_name=?`
		args = append(args, filter.WorkflowName)
	}
	if filter.Status != "" {
		query += ` AND status=?`
		args = append(args, filter.Status)
	}
	if filter.ExperimentName != "" {
		query += ` AND experiment_name=?`
		args = append(args, filter.ExperimentName)
	}
	query += ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ListByAgent implements store.Store.
func (s *Store) ListByAgent(ctx context.Context, agentID string) ([]store.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE agent_id=? ORDER BY created_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list runs by agent: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

const selectColumns = `
	SELECT id, workflow_name, status, config_snapshot, inputs, outputs, error,
		input_tokens, output_tokens, cost_usd, duration_ms,
		agent_id, parent_run_id, experiment_name, variant_name, block_deploy,
		created_at, updated_at, completed_at
	FROM runs
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.RunRecord, error) {
	var (
		r                    store.RunRecord
		inputsRaw, outputsRaw string
		blockDeploy          int
		completedAt          sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.WorkflowName, &r.Status, &r.ConfigSnapshot, &inputsRaw, &outputsRaw, &r.Error,
		&r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.DurationMS,
		&r.AgentID, &r.ParentRunID, &r.ExperimentName, &r.VariantName, &blockDeploy,
		&r.CreatedAt, &r.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return store.RunRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	if inputsRaw != "" {
		if err := json.Unmarshal([]byte(inputsRaw), &r.Inputs); err != nil {
			return store.RunRecord{}, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if outputsRaw != "" {
		if err := json.Unmarshal([]byte(outputsRaw), &r.Outputs); err != nil {
			return store.RunRecord{}, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	r.BlockDeploy = blockDeploy != 0
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return r, nil
}

func scanRuns(rows *sql.Rows) ([]store.RunRecord, error) {
	var out []store.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
