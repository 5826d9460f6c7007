package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/internal/core"
	"github.com/valter-silva-au/attention/pkg/models"
)

var explainJSON bool

var explainCmd = &cobra.Command{
	Use:   "explain <item-id>",
	Short: "Explain why an item is ranked where it is",
	Long: `Rank all sources with the configured settings and print the reasoning,
dimension scores, and signals of one ranked item.

Item IDs have the form <source-type>-<source-id>, for example task-42 or
calendar_event-abc.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeItemIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("priority engine not initialized")
		}

		result, err := Engine.Rank(commandContext(cmd), priorityConfig())
		if err != nil {
			return fmt.Errorf("ranking items: %w", err)
		}
		item, err := core.Explain(result, args[0])
		if err != nil {
			return err
		}

		if explainJSON {
			return writeJSON(cmd.OutOrStdout(), item)
		}
		printExplanation(cmd.OutOrStdout(), item)
		return nil
	},
}

func printExplanation(w io.Writer, item models.WorkItem) {
	fmt.Fprintf(w, "%s %s\n", sourceStyle.Render("["+item.SourceType.Label()+"]"), item.Title)
	if item.Subtitle != "" {
		fmt.Fprintf(w, "%s\n", item.Subtitle)
	}
	fmt.Fprintf(w, "\n  %-12s %s\n", "Priority:", scoreStyle.Render(fmt.Sprintf("%.2f", item.PriorityScore)))
	fmt.Fprintf(w, "  %-12s %s\n", "Reasoning:", item.Reasoning)
	if len(item.ContextLabels) > 0 {
		fmt.Fprintf(w, "  %-12s %s\n", "Labels:", strings.Join(item.ContextLabels, ", "))
	}

	fmt.Fprintln(w, "\n  Signals:")
	for _, s := range item.Signals {
		fmt.Fprintf(w, "    %-12s %.2f  %s\n", s.Source, s.Weight, dimStyle.Render(s.Description))
	}
}

func init() {
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "Output the item as JSON")
	rootCmd.AddCommand(explainCmd)
}
