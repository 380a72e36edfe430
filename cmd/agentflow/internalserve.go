package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/dashboard"
	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/internal/obslog"
	"github.com/configurable-agents/engine/orchestrator"
	"github.com/configurable-agents/engine/webhook"
)

// internalServeCmd is the supervisor's re-exec target (spec §4.17): the
// parent process launches `agentflow internal-serve --role R
// --config-json J`, one per supervised child. It is not meant to be
// invoked directly by an operator, so it is hidden from `--help`.
func internalServeCmd() *cobra.Command {
	var role, configJSON string

	cmd := &cobra.Command{
		Use:    "internal-serve",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sc serveConfig
			if err := json.Unmarshal([]byte(configJSON), &sc); err != nil {
				return fmt.Errorf("unmarshal child config: %w", err)
			}

			switch role {
			case "dashboard":
				return serveDashboard(cmd.Context(), sc)
			case "chat":
				return serveChat(cmd.Context(), sc)
			case "metrics":
				return serveMetricsPlaceholder(cmd.Context(), sc)
			default:
				return usagef("unknown --role %q", role)
			}
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "which supervised child to run")
	cmd.Flags().StringVar(&configJSON, "config-json", "{}", "JSON-encoded serveConfig")
	return cmd
}

func serveDashboard(ctx context.Context, sc serveConfig) error {
	logger := newLogger(sc.Config)

	st, closeStore, err := openStore(ctx, sc.Config)
	if err != nil {
		return err
	}
	defer closeStore()

	exec := buildExecutor(sc.Config)
	eng := engine.New(st, exec)
	agents := newAgentRegistry(sc.Config)

	lookup, err := discoverWorkflows(sc.WorkflowsDir, logger)
	if err != nil {
		return err
	}

	dispatcher := webhook.NewDispatcher(eng, lookup, sc.Config.WebhookSecret, logger, sc.Config.WebhookWorkers, sc.Config.WebhookWorkers*4)

	srv := dashboard.New(dashboard.Server{
		Engine: eng,
		Store:  st,
		Agents: agents,
		Orchestrator: &orchestrator.Orchestrator{
			Agents: agents,
			Store:  st,
		},
		Experiments: newExperimentStore(sc.Config),
		Webhook:     dispatcher,
		Lookup:      lookup,
		Logger:      logger,
	})

	return runUntilCancelled(ctx, srv.Handler(), sc.Port, logger, "dashboard")
}

func serveChat(ctx context.Context, sc serveConfig) error {
	logger := newLogger(sc.Config)

	st, closeStore, err := openStore(ctx, sc.Config)
	if err != nil {
		return err
	}
	defer closeStore()

	exec := buildExecutor(sc.Config)
	eng := engine.New(st, exec)

	lookup, err := discoverWorkflows(sc.WorkflowsDir, logger)
	if err != nil {
		return err
	}

	handler := newChatServer(eng, lookup, logger)
	return runUntilCancelled(ctx, handler, sc.Port, logger, "chat")
}

// serveMetricsPlaceholder stands in for an external MLflow UI when the
// operator hasn't pointed --mlflow-uri at one: the concrete MLflow
// server is out of scope for this module (spec.md's non-goals list the
// metric store as an opaque external collaborator), so this just
// reports liveness and tells the operator to point --mlflow-uri at an
// MLflow tracking server instead of rendering anything.
func serveMetricsPlaceholder(ctx context.Context, sc serveConfig) error {
	logger := newLogger(sc.Config)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "no local metrics UI is implemented; point --mlflow-uri at an MLflow tracking server")
	})
	return runUntilCancelled(ctx, mux, sc.Port, logger, "metrics")
}

// runUntilCancelled starts handler on port and blocks until ctx is
// cancelled, then shuts it down with a grace period.
func runUntilCancelled(ctx context.Context, handler http.Handler, port int, logger *obslog.Logger, name string) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down", "role", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
