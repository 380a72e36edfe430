// Package main implements a reference remote agent (spec §6 Agent
// protocol): GET /health, GET /schema, POST /run. It wraps a single
// workflow declaration in the three routes orchestrator.Orchestrator
// expects, so the orchestrator's remote-dispatch contract can be
// exercised against a real process rather than only a mock. Grounded on
// cmd/agentflow's wiring (same declaration/validate/state/node/engine
// stack), re-laid-out as its own small cobra root command per
// C360Studio-semspec/cmd/semspec/main.go's pattern.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/internal/config"
	"github.com/configurable-agents/engine/internal/obslog"
	"github.com/configurable-agents/engine/llm"
	"github.com/configurable-agents/engine/llm/anthropic"
	llmecho "github.com/configurable-agents/engine/llm/echo"
	"github.com/configurable-agents/engine/llm/google"
	"github.com/configurable-agents/engine/llm/openai"
	"github.com/configurable-agents/engine/node"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store/memory"
	"github.com/configurable-agents/engine/tool"
	"github.com/configurable-agents/engine/validate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "remoteagent",
		Short: "Serve a single workflow declaration behind the remote agent protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			return serve(cmd.Context(), configPath, port)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "workflow declaration to serve (required)")
	cmd.Flags().IntVar(&port, "port", 9090, "listen port")
	return cmd
}

func serve(ctx context.Context, configPath string, port int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	d, err := declaration.Load(configPath)
	if err != nil {
		return err
	}
	if err := validate.Validate(d); err != nil {
		return err
	}
	builder, err := state.NewBuilder(d)
	if err != nil {
		return fmt.Errorf("compile state builder: %w", err)
	}

	eng := engine.New(memory.New(), buildExecutor(cfg))
	schema := buildSchema(d)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schema)
	})
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		handleRun(w, r, eng, d, builder, logger)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// schemaField matches spec §6 Agent protocol's
// {type, description, required} per input field.
type schemaField struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

type schemaResponse struct {
	Workflow string                 `json:"workflow"`
	Inputs   map[string]schemaField `json:"inputs"`
	Outputs  []string               `json:"outputs"`
}

// buildSchema derives the agent's advertised input/output shape from the
// declaration: inputs are every state field no node produces as an
// output; outputs are every field produced by at least one node.
func buildSchema(d *declaration.Declaration) schemaResponse {
	produced := make(map[string]bool)
	for _, n := range d.Nodes {
		for _, out := range n.Outputs {
			produced[out] = true
		}
	}

	inputs := make(map[string]schemaField)
	var outputs []string
	for name, fs := range d.State {
		if produced[name] {
			outputs = append(outputs, name)
			continue
		}
		inputs[name] = schemaField{Type: fs.Type, Description: fs.Description, Required: fs.Required}
	}

	return schemaResponse{Workflow: d.Flow.Name, Inputs: inputs, Outputs: outputs}
}

type runRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type runResponse struct {
	RunID           string         `json:"run_id"`
	Status          string         `json:"status"`
	Outputs         map[string]any `json:"outputs,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	CostUSD         float64        `json:"cost_usd"`
}

func handleRun(w http.ResponseWriter, r *http.Request, eng *engine.Engine, d *declaration.Declaration, builder *state.Builder, logger *obslog.Logger) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	record, err := eng.Execute(r.Context(), d, builder, req.Inputs, engine.Options{})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		logger.Error("agent run failed", "run_id", record.ID, "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(runResponse{RunID: record.ID, Status: record.Status})
		return
	}

	json.NewEncoder(w).Encode(runResponse{
		RunID:           record.ID,
		Status:          record.Status,
		Outputs:         record.Outputs,
		DurationSeconds: float64(record.DurationMS) / 1000.0,
		CostUSD:         record.CostUSD,
	})
}

func newLogger(cfg config.Config) *obslog.Logger {
	format := obslog.FormatConsole
	if cfg.LogFormat == "json" {
		format = obslog.FormatJSON
	}
	return obslog.New(cfg.LogLevel, format)
}

// buildExecutor mirrors cmd/agentflow's provider wiring; duplicated
// rather than shared because the two binaries have no common internal
// package to hold it without promoting cmd/agentflow's package to an
// importable one, and the wiring is three lines per vendor.
func buildExecutor(cfg config.Config) *node.Executor {
	providers := map[string]llm.Provider{}
	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.GoogleAPIKey != "" {
		providers["google"] = google.New(cfg.GoogleAPIKey, cfg.GoogleModel)
	}
	if len(providers) == 0 {
		providers["default"] = &llmecho.Provider{}
	} else if _, ok := providers["default"]; !ok {
		for _, p := range providers {
			providers["default"] = p
			break
		}
	}
	return &node.Executor{Providers: providers, Tools: tool.NewRegistry()}
}
