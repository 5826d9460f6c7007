package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	attnmcp "github.com/valter-silva-au/attention/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the attn MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attn MCP server on stdio",
	Long: `Start the attn MCP server on stdio transport.

The server exposes the ranked attention list as MCP tools that AI assistants
can call: rank_items, explain_item, resolve_item, snooze_item, get_metrics,
get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("priority engine not initialized")
		}

		srv := attnmcp.NewServer(attnmcp.Deps{
			Engine:      Engine,
			Actions:     Actions,
			ActionLog:   ActionLog,
			Config:      priorityConfig,
			MetricsCalc: MetricsCalc,
			AlertEngine: AlertEngine,
		}, appVersion)

		if err := srv.Run(commandContext(cmd)); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
