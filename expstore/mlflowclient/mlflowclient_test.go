package mlflowclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/configurable-agents/engine/expstore"
)

func newFakeServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/2.0/mlflow/experiments/get-by-name", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("experiment_name")
		if name != "prompt-length" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"experiment": map[string]any{"experiment_id": "1"}})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/create", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"run": map[string]any{"info": map[string]any{"run_id": "run-1"}}})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/log-batch", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/update", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"runs": []map[string]any{
				{
					"info": map[string]any{"run_id": "run-1", "start_time": 0, "status": "FINISHED"},
					"data": map[string]any{
						"metrics": []map[string]any{{"key": "cost_usd", "value": 0.5}},
						"tags":    []map[string]any{{"key": "variant_name", "value": "a"}},
					},
				},
				{
					"info": map[string]any{"run_id": "run-2", "start_time": 0, "status": "FINISHED"},
					"data": map[string]any{
						"metrics": []map[string]any{{"key": "cost_usd", "value": 1.5}},
						"tags":    []map[string]any{{"key": "variant_name", "value": "b"}},
					},
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	return srv, New(srv.URL, srv.Client())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_LogRun(t *testing.T) {
	srv, client := newFakeServer(t)
	defer srv.Close()

	err := client.LogRun(context.Background(), expstore.ExperimentRun{
		ExperimentName: "prompt-length",
		VariantName:    "a",
		RunID:          "agentflow-run-1",
		Metrics:        map[string]float64{"cost_usd": 0.5},
		StartedAt:      time.Now(),
		Status:         "succeeded",
	})
	require.NoError(t, err)
}

func TestClient_ListRuns_FiltersByVariant(t *testing.T) {
	srv, client := newFakeServer(t)
	defer srv.Close()

	runs, err := client.ListRuns(context.Background(), "prompt-length", expstore.Filter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	filtered, err := client.ListRuns(context.Background(), "prompt-length", expstore.Filter{VariantName: "b"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "run-2", filtered[0].RunID)
}

func TestClient_GetAggregate(t *testing.T) {
	srv, client := newFakeServer(t)
	defer srv.Close()

	agg, err := client.GetAggregate(context.Background(), "prompt-length", "cost_usd")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 1.0, agg.Mean)
}

func TestClient_ListRuns_UnknownExperiment(t *testing.T) {
	srv, client := newFakeServer(t)
	defer srv.Close()

	_, err := client.ListRuns(context.Background(), "nonexistent", expstore.Filter{})
	assert.Error(t, err)
}
