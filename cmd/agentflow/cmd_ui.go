package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/internal/config"
	"github.com/configurable-agents/engine/supervisor"
)

// serveConfig is the plain-data record marshaled across the process
// boundary to an internal-serve child (spec §4.17: "a plain-data config
// record, no closures"). Every role reads the fields it needs and
// ignores the rest.
type serveConfig struct {
	Config       config.Config
	Port         int
	WorkflowsDir string
}

func uiCmd() *cobra.Command {
	var (
		dashboardPort int
		chatPort      int
		mlflowPort    int
		mlflowURI     string
		noChat        bool
		workflowsDir  string
	)

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Start the dashboard, chat, and optional metrics UIs as supervised processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dashboardPort != 0 {
				cfg.DashboardPort = dashboardPort
			}
			if chatPort != 0 {
				cfg.ChatPort = chatPort
			}
			if mlflowPort != 0 {
				cfg.MLflowPort = mlflowPort
			}
			if mlflowURI != "" {
				cfg.MLflowURI = mlflowURI
			}
			if noChat {
				cfg.NoChat = true
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable path: %w", err)
			}

			sup := supervisor.New(exe, os.Stdout, os.Stderr)

			children := []supervisor.Child{
				{
					Name:  "dashboard",
					Role:  "dashboard",
					Config: serveConfig{Config: cfg, Port: cfg.DashboardPort, WorkflowsDir: workflowsDir},
					Ready: httpReady(cfg.DashboardPort, "/health"),
				},
			}
			if !cfg.NoChat {
				children = append(children, supervisor.Child{
					Name:  "chat",
					Role:  "chat",
					Config: serveConfig{Config: cfg, Port: cfg.ChatPort, WorkflowsDir: workflowsDir},
					Ready: httpReady(cfg.ChatPort, "/health"),
				})
			}
			if cfg.MLflowURI == "" {
				children = append(children, supervisor.Child{
					Name:  "metrics",
					Role:  "metrics",
					Config: serveConfig{Config: cfg, Port: cfg.MLflowPort},
					Ready: httpReady(cfg.MLflowPort, "/health"),
				})
			}

			ctx := cmd.Context()
			if err := sup.Start(ctx, children); err != nil {
				return fmt.Errorf("start supervised uis: %w", err)
			}

			err = sup.Wait(ctx)
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sup.StopAll(stopCtx)
			return err
		},
	}
	cmd.Flags().IntVar(&dashboardPort, "dashboard-port", 0, "dashboard HTTP port (default from config)")
	cmd.Flags().IntVar(&chatPort, "chat-port", 0, "chat UI HTTP port (default from config)")
	cmd.Flags().IntVar(&mlflowPort, "mlflow-port", 0, "local metrics UI port, when not pointing at an external MLflow server")
	cmd.Flags().StringVar(&mlflowURI, "mlflow-uri", "", "external MLflow tracking URI; when set, no local metrics UI is spawned")
	cmd.Flags().BoolVar(&noChat, "no-chat", false, "don't start the chat UI")
	cmd.Flags().StringVar(&workflowsDir, "workflows-dir", ".", "directory of workflow declarations the dashboard/chat/webhook can serve by name")
	return cmd
}

// httpReady builds a supervisor.Child.Ready probe for an HTTP child: it
// succeeds once a GET to path on port returns any response at all (the
// child routes its own status codes; reachability is all Ready checks).
func httpReady(port int, path string) func(context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d%s", port, path), nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}
