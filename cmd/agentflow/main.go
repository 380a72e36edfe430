// Package main implements the agentflow CLI (spec §6): run, validate, ui,
// optimization, and report subcommands over configuration-driven
// workflow declarations. Grounded on
// C360Studio-semspec/cmd/semspec/main.go's cobra root command +
// signal.NotifyContext shutdown, and its sibling cmd/e2e/main.go's
// AddCommand subcommand tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/validate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := rootCmd().ExecuteContext(ctx)
	os.Exit(exitCode(ctx, err))
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentflow",
		Short:         "Configuration-driven workflow engine for LLM-backed processing graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		runCmd(),
		validateCmd(),
		uiCmd(),
		internalServeCmd(),
		optimizationCmd(),
		reportCmd(),
	)
	return cmd
}

// exitCode maps a command's returned error to spec §6's documented CLI
// exit codes: 0 success, 1 user error (bad config/declaration), 2
// runtime error, 130 interrupted.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return 130
	}

	fmt.Fprintln(os.Stderr, "Error:", err)

	var parseErr *declaration.ParseError
	var validateErr *validate.Error
	var usageErr *usageError
	if errors.As(err, &parseErr) || errors.As(err, &validateErr) || errors.As(err, &usageErr) {
		return 1
	}
	return 2
}
