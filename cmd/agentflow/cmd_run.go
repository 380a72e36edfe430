package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/internal/config"
)

func runCmd() *cobra.Command {
	var inputPairs []string

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Execute a workflow declaration and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, args[0], inputPairs)
		},
	}
	cmd.Flags().StringArrayVar(&inputPairs, "input", nil, "workflow input as key=value (repeatable)")
	return cmd
}

func runWorkflow(cmd *cobra.Command, configPath string, inputPairs []string) error {
	ctx := cmd.Context()

	inputs, err := parseInputs(inputPairs)
	if err != nil {
		return &usageError{msg: err.Error()}
	}

	lw, err := loadWorkflow(configPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	exec := buildExecutor(cfg)
	eng := engine.New(st, exec)

	record, runErr := eng.Execute(ctx, lw.Declaration, lw.Builder, inputs, engine.Options{
		ConfigSnapshot: lw.Source,
	})
	if runErr != nil {
		logger.Error("run failed", "workflow", lw.Declaration.Flow.Name, "run_id", record.ID, "error", runErr)
		return fmt.Errorf("run %s: %w", record.ID, runErr)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record.Outputs)
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Parse and semantically validate a workflow declaration without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadWorkflow(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
