package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/textdedup/pkg/mcp"
	"github.com/sumatoshi-tech/textdedup/pkg/observability"
)

// NewMCPCommand builds the `mcp` subcommand: a stdio MCP server exposing the
// dedup pipeline as the dedup_run tool.
func NewMCPCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run a Model Context Protocol server exposing dedup_run",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMCP(global)
		},
	}
}

func runMCP(global *globalFlags) error {
	providers, err := initObservability(observability.ModeMCP, "", false, global.quiet)
	if err != nil {
		return err
	}
	defer func() { _ = providers.Shutdown(context.Background()) }()

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init mcp metrics: %w", err)
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Logger:  providers.Logger,
		Metrics: red,
		Tracer:  providers.Tracer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}
