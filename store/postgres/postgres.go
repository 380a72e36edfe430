// Package postgres is the external relational run repository backend
// (C10, spec §4.10), for multi-process installs where the dashboard,
// CLI runner, and orchestrator all need to see the same run history.
// Uses pgx directly rather than database/sql, following the pattern of
// the pack's native-driver services.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/configurable-agents/engine/store"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to postgres at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	const runsTable = `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			status TEXT NOT NULL,
			config_snapshot TEXT NOT NULL DEFAULT '',
			inputs JSONB NOT NULL DEFAULT '{}',
			outputs JSONB NOT NULL DEFAULT '{}',
			error TEXT NOT NULL DEFAULT '',
			input_tokens BIGINT NOT NULL DEFAULT 0,
			output_tokens BIGINT NOT NULL DEFAULT 0,
			cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			agent_id TEXT NOT NULL DEFAULT '',
			parent_run_id TEXT NOT NULL DEFAULT '',
			experiment_name TEXT NOT NULL DEFAULT '',
			variant_name TEXT NOT NULL DEFAULT '',
			block_deploy BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)
	`
	if _, err := s.pool.Exec(ctx, runsTable); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_workflow ON runs(workflow_name)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",
		"CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment_name)",
		"CREATE INDEX IF NOT EXISTS idx_runs_agent ON runs(agent_id)",
	}
	for _, idx := range indexes {
		if _, err := s.pool.Exec(ctx, idx); err != nil {
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
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`
	_, err = s.pool.Exec(ctx, q,
		record.ID, record.WorkflowName, record.Status, record.ConfigSnapshot,
		inputs, outputs, record.Error,
		record.InputTokens, record.OutputTokens, record.CostUSD, record.DurationMS,
		record.AgentID, record.ParentRunID, record.ExperimentName, record.VariantName,
		record.BlockDeploy, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateStatus implements store.Store.
func (s *Store) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	now := time.Now()
	var completedAt *time.Time
	if status == store.StatusSucceeded || status == store.StatusFailed || status == store.StatusCancelled {
		completedAt = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status=$1, error=$2, updated_at=$3, completed_at=COALESCE($4, completed_at) WHERE id=$5`,
		status, errMsg, now, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendOutputs implements store.Store.
func (s *Store) AppendOutputs(ctx context.Context, id string, partial map[string]any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT outputs FROM runs WHERE id=$1`, id).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.ErrNotFound
		}
		return fmt.Errorf("select outputs: %w", err)
	}

	existing := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &existing); err != nil {
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

	tag, err := s.pool.Exec(ctx, `UPDATE runs SET outputs=$1, updated_at=$2 WHERE id=$3`, merged, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update outputs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateCompletion implements store.Store.
func (s *Store) UpdateCompletion(ctx context.Context, id string, outputs map[string]any, inputTokens, outputTokens int64, costUSD float64, durationMS int64, blockDeploy bool) error {
	marshalled, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	now := time.Now()
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs SET
			outputs=$1, input_tokens=$2, output_tokens=$3, cost_usd=$4, duration_ms=$5,
			block_deploy=$6, status=$7, completed_at=$8, updated_at=$9
		WHERE id=$10`,
		marshalled, inputTokens, outputTokens, costUSD, durationMS,
		blockDeploy, store.StatusSucceeded, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (store.RunRecord, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` WHERE id=$1`, id)
	return scanRun(row)
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, filter store.Filter) ([]store.RunRecord, error) {
	query := selectColumns + ` WHERE TRUE`
	var args []any
	n := 1
	if filter.WorkflowName != "" {
		query += fmt.Sprintf(" AND workflow_name=$%d", n)
		args = append(args, filter.WorkflowName)
		n++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status=$%d", n)
		args = append(args, filter.Status)
		n++
	}
	if filter.ExperimentName != "" {
		query += fmt.Sprintf(" AND experiment_name=$%d", n)
		args = append(args, filter.ExperimentName)
		n++
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ListByAgent implements store.Store.
func (s *Store) ListByAgent(ctx context.Context, agentID string) ([]store.RunRecord, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` WHERE agent_id=$1 ORDER BY created_at ASC`, agentID)
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
		r                     store.RunRecord
		inputsRaw, outputsRaw []byte
		completedAt           *time.Time
	)
	err := row.Scan(
		&r.ID, &r.WorkflowName, &r.Status, &r.ConfigSnapshot, &inputsRaw, &outputsRaw, &r.Error,
		&r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.DurationMS,
		&r.AgentID, &r.ParentRunID, &r.ExperimentName, &r.VariantName, &r.BlockDeploy,
		&r.CreatedAt, &r.UpdatedAt, &completedAt,
	)
	if err == pgx.ErrNoRows {
		return store.RunRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	if len(inputsRaw) > 0 {
		if err := json.Unmarshal(inputsRaw, &r.Inputs); err != nil {
			return store.RunRecord{}, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if len(outputsRaw) > 0 {
		if err := json.Unmarshal(outputsRaw, &r.Outputs); err != nil {
			return store.RunRecord{}, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	r.CompletedAt = completedAt
	return r, nil
}

func scanRuns(rows pgx.Rows) ([]store.RunRecord, error) {
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
