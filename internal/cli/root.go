package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "attn",
	Short: "attn - one ranked list of what needs attention now",
	Long: `attn merges tasks, unread inbox messages, upcoming meetings, stale
portfolio and pipeline relationships, reading items, and recurring
commitments into a single bounded list ranked by urgency, importance,
recency, commitment, and effort.

Every item carries a short reasoning line and per-dimension signals, so
the ranking can always be explained. Items can be resolved or snoozed in
their owning source store straight from the list.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "attn %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command with ctx, which every command reaches
// through cmd.Context. Cancelling ctx stops in-flight source fetches.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
