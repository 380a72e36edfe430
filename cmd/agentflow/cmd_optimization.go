package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/engine"
	"github.com/configurable-agents/engine/experiment"
	"github.com/configurable-agents/engine/internal/config"
)

func optimizationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimization",
		Short: "A/B experiment tooling: run variants, rank results, apply the winner",
	}
	cmd.AddCommand(abTestCmd(), evaluateCmd(), applyOptimizedCmd())
	return cmd
}

func abTestCmd() *cobra.Command {
	var inputPairs []string

	cmd := &cobra.Command{
		Use:   "ab-test <config>",
		Short: "Run every configured variant of a declaration's optimization.ab_test block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inputs, err := parseInputs(inputPairs)
			if err != nil {
				return &usageError{msg: err.Error()}
			}

			lw, err := loadWorkflow(args[0])
			if err != nil {
				return err
			}
			if lw.Declaration.Optimization.ABTest == nil {
				return usagef("%s has no optimization.ab_test block configured", args[0])
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			st, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			runner := &experiment.Runner{
				Engine:  engine.New(st, buildExecutor(cfg)),
				Builder: lw.Builder,
				Store:   newExperimentStore(cfg),
			}
			records, err := runner.Run(ctx, lw.Declaration, inputs)
			if err != nil {
				return fmt.Errorf("ab-test: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ran %d variant executions for experiment %q\n",
				len(records), lw.Declaration.Optimization.ABTest.ExperimentName)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&inputPairs, "input", nil, "workflow input as key=value (repeatable)")
	return cmd
}

func evaluateCmd() *cobra.Command {
	var experimentName, metric string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print variants of an experiment ranked by a metric",
		RunE: func(cmd *cobra.Command, args []string) error {
			if experimentName == "" {
				return usagef("--experiment is required")
			}
			if metric == "" {
				metric = defaultOptimizationMetric
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			results, err := experiment.Evaluate(cmd.Context(), newExperimentStore(cfg), experimentName, metric)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", experimentName, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().StringVar(&experimentName, "experiment", "", "experiment name (required)")
	cmd.Flags().StringVar(&metric, "metric", "", "metric to rank by (default cost_usd)")
	return cmd
}

func applyOptimizedCmd() *cobra.Command {
	var experimentName, workflowPath, metric string
	var minimize bool

	cmd := &cobra.Command{
		Use:   "apply-optimized",
		Short: "Rewrite a declaration's node prompt with its experiment's winning variant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if experimentName == "" || workflowPath == "" {
				return usagef("--experiment and --workflow are required")
			}
			if metric == "" {
				metric = defaultOptimizationMetric
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			winner, err := experiment.ApplyBest(cmd.Context(), newExperimentStore(cfg), workflowPath, experimentName, metric, minimize)
			if err != nil {
				return fmt.Errorf("apply-optimized: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied variant %q to %s\n", winner, workflowPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&experimentName, "experiment", "", "experiment name (required)")
	cmd.Flags().StringVar(&workflowPath, "workflow", "", "declaration file to rewrite (required)")
	cmd.Flags().StringVar(&metric, "metric", "", "metric to rank by (default cost_usd)")
	cmd.Flags().BoolVar(&minimize, "minimize", true, "lower metric values win (set false for metrics where higher is better)")
	return cmd
}

const defaultOptimizationMetric = "cost_usd"
