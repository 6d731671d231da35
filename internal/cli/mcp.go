package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	bphmcp "github.com/valter-silva-au/buildphase/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the bph MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bph MCP server on stdio",
	Long: `Start the bph MCP server on stdio transport.

The server exposes the schedule as MCP tools that AI assistants can call:
get_phases, get_proposed_shift, apply_shift, discard_shift, expand_phase,
get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}

		srv := bphmcp.NewServer(Service, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
