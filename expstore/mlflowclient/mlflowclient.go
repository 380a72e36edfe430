// Package mlflowclient implements expstore.Store against an MLflow-
// compatible tracking server's REST API, treating the experiment runner's
// concepts as MLflow's native ones: an experiment_name maps to an MLflow
// experiment, a variant_name is logged as a run tag, and node/run metrics
// are logged as MLflow metrics.
package mlflowclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/configurable-agents/engine/expstore"
	"github.com/configurable-agents/engine/internal/stats"
)

const variantTagKey = "variant_name"

// Client talks to an MLflow tracking server at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client for the tracking server at baseURL. A nil
// httpClient defaults to http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

// LogRun creates an MLflow run under experimentName (creating the
// experiment first if it doesn't exist), tags it with variant_name, and
// logs every metric.
func (c *Client) LogRun(ctx context.Context, run expstore.ExperimentRun) error {
	expID, err := c.ensureExperiment(ctx, run.ExperimentName)
	if err != nil {
		return err
	}

	var created struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/runs/create", map[string]any{
		"experiment_id": expID,
		"start_time":    run.StartedAt.UnixMilli(),
		"tags": []map[string]string{
			{"key": variantTagKey, "value": run.VariantName},
			{"key": "agentflow_run_id", "value": run.RunID},
		},
	}, &created); err != nil {
		return fmt.Errorf("create mlflow run: %w", err)
	}
	mlflowRunID := created.Run.Info.RunID

	metrics := make([]map[string]any, 0, len(run.Metrics))
	for name, value := range run.Metrics {
		metrics = append(metrics, map[string]any{
			"key": name, "value": value, "timestamp": time.Now().UnixMilli(),
		})
	}
	if len(metrics) > 0 {
		if err := c.post(ctx, "/api/2.0/mlflow/runs/log-batch", map[string]any{
			"run_id": mlflowRunID, "metrics": metrics,
		}, nil); err != nil {
			return fmt.Errorf("log mlflow metrics: %w", err)
		}
	}

	return c.post(ctx, "/api/2.0/mlflow/runs/update", map[string]any{
		"run_id": mlflowRunID,
		"status": mlflowStatus(run.Status),
	}, nil)
}

// ListExperiments returns every experiment name known to the tracking
// server.
func (c *Client) ListExperiments(ctx context.Context) ([]string, error) {
	var resp struct {
		Experiments []struct {
			Name string `json:"name"`
		} `json:"experiments"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/experiments/search", map[string]any{"max_results": 1000}, &resp); err != nil {
		return nil, fmt.Errorf("list mlflow experiments: %w", err)
	}
	names := make([]string, len(resp.Experiments))
	for i, e := range resp.Experiments {
		names[i] = e.Name
	}
	return names, nil
}

// ListRuns returns every run logged under experimentName, optionally
// narrowed to a single variant.
func (c *Client) ListRuns(ctx context.Context, experimentName string, filter expstore.Filter) ([]expstore.ExperimentRun, error) {
	expID, err := c.lookupExperiment(ctx, experimentName)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Runs []mlflowRun `json:"runs"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/runs/search", map[string]any{
		"experiment_ids": []string{expID},
		"max_results":    10000,
	}, &resp); err != nil {
		return nil, fmt.Errorf("search mlflow runs: %w", err)
	}

	var out []expstore.ExperimentRun
	for _, r := range resp.Runs {
		run := r.toExperimentRun(experimentName)
		if filter.VariantName != "" && run.VariantName != filter.VariantName {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

// GetAggregate computes mean and nearest-rank percentiles for metric
// across every run in experimentName. MLflow has no native aggregation
// endpoint, so this fetches the runs and reduces them locally.
func (c *Client) GetAggregate(ctx context.Context, experimentName, metric string) (expstore.Aggregate, error) {
	runs, err := c.ListRuns(ctx, experimentName, expstore.Filter{})
	if err != nil {
		return expstore.Aggregate{}, err
	}

	var values []float64
	for _, r := range runs {
		if v, ok := r.Metrics[metric]; ok {
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	return expstore.Aggregate{
		Mean:  stats.Mean(values),
		P50:   stats.Percentile(values, 50),
		P90:   stats.Percentile(values, 90),
		P95:   stats.Percentile(values, 95),
		P99:   stats.Percentile(values, 99),
		Count: len(values),
	}, nil
}

func (c *Client) ensureExperiment(ctx context.Context, name string) (string, error) {
	id, err := c.lookupExperiment(ctx, name)
	if err == nil {
		return id, nil
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/experiments/create", map[string]any{"name": name}, &created); err != nil {
		return "", fmt.Errorf("create mlflow experiment %s: %w", name, err)
	}
	return created.ExperimentID, nil
}

func (c *Client) lookupExperiment(ctx context.Context, name string) (string, error) {
	var resp struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/2.0/mlflow/experiments/get-by-name?experiment_name=%s", name), &resp); err != nil {
		return "", fmt.Errorf("lookup mlflow experiment %s: %w", name, err)
	}
	if resp.Experiment.ExperimentID == "" {
		return "", fmt.Errorf("experiment %s not found", name)
	}
	return resp.Experiment.ExperimentID, nil
}

type mlflowRun struct {
	Info struct {
		RunID     string `json:"run_id"`
		StartTime int64  `json:"start_time"`
		Status    string `json:"status"`
	} `json:"info"`
	Data struct {
		Metrics []struct {
			Key   string  `json:"key"`
			Value float64 `json:"value"`
		} `json:"metrics"`
		Tags []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"tags"`
	} `json:"data"`
}

func (r mlflowRun) toExperimentRun(experimentName string) expstore.ExperimentRun {
	out := expstore.ExperimentRun{
		ExperimentName: experimentName,
		RunID:          r.Info.RunID,
		StartedAt:      time.UnixMilli(r.Info.StartTime),
		Status:         r.Info.Status,
		Metrics:        make(map[string]float64, len(r.Data.Metrics)),
	}
	for _, m := range r.Data.Metrics {
		out.Metrics[m.Key] = m.Value
	}
	for _, tag := range r.Data.Tags {
		if tag.Key == variantTagKey {
			out.VariantName = tag.Value
		}
	}
	return out
}

func mlflowStatus(status string) string {
	switch status {
	case "completed", "succeeded":
		return "FINISHED"
	case "failed", "cancelled":
		return "FAILED"
	default:
		return "RUNNING"
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mlflow request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mlflow returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
