package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/costreport"
	"github.com/configurable-agents/engine/internal/config"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Cost and usage reporting over run history",
	}
	cmd.AddCommand(reportCostsCmd())
	return cmd
}

func reportCostsCmd() *cobra.Command {
	var (
		period, start, end, workflow, output, format string
	)

	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Aggregate workflow run costs by period",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := costreport.Options{
				Period:   costreport.Period(period),
				Workflow: workflow,
			}
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return usagef("--start: %v", err)
				}
				opts.Start = t
			}
			if end != "" {
				t, err := time.Parse("2006-01-02", end)
				if err != nil {
					return usagef("--end: %v", err)
				}
				opts.End = t
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			st, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := costreport.Generate(ctx, st, opts)
			if err != nil {
				return fmt.Errorf("generate cost report: %w", err)
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "json":
				return costreport.WriteJSON(w, entries)
			default:
				return costreport.WriteCSV(w, entries)
			}
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "daily|weekly|monthly (default: total)")
	cmd.Flags().StringVar(&start, "start", "", "range start, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "range end, YYYY-MM-DD (exclusive)")
	cmd.Flags().StringVar(&workflow, "workflow", "", "restrict to one workflow name")
	cmd.Flags().StringVar(&output, "output", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "csv", "json|csv")
	return cmd
}
