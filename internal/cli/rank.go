package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/internal/core"
	"github.com/valter-silva-au/attention/pkg/models"
)

var (
	rankJSON         bool
	rankMinScore     float64
	rankMaxItems     int
	rankMaxPerSource int
	rankStrict       bool
)

var (
	scoreStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show the ranked list of items that need attention",
	Long: `Fetch every configured source, score each item, and print the bounded
ranked list.

Flags override the configured priority settings for this run only:

  attn rank --max-items 5
  attn rank --min-score 0.5 --max-per-source 2
  attn rank --strict --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("priority engine not initialized")
		}

		cfg := rankConfig(cmd)
		if err := core.ValidatePriorityConfig(cfg); err != nil {
			return err
		}

		result, err := Engine.Rank(commandContext(cmd), cfg)
		if err != nil {
			return fmt.Errorf("ranking items: %w", err)
		}

		out := cmd.OutOrStdout()
		if rankJSON {
			return writeJSON(out, result)
		}
		printRanking(out, result)
		return nil
	},
}

// rankConfig applies the flags that were explicitly set on cmd to the
// configured priority settings.
func rankConfig(cmd *cobra.Command) models.PriorityConfig {
	cfg := priorityConfig()
	flags := cmd.Flags()
	if flags.Changed("min-score") {
		cfg.MinScore = rankMinScore
	}
	if flags.Changed("max-items") {
		cfg.MaxItems = rankMaxItems
	}
	if flags.Changed("max-per-source") {
		cfg.MaxItemsPerSource = rankMaxPerSource
	}
	if rankStrict {
		cfg.StrictMaxItems = true
	}
	return cfg
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printRanking(w io.Writer, result *core.RankResult) {
	fmt.Fprintf(w, "Ranked %d of %d items (%d excluded, %d dropped)\n\n",
		len(result.Items), result.Considered, result.Excluded, len(result.Dropped))

	if len(result.Items) == 0 {
		fmt.Fprintln(w, "  Nothing needs attention right now.")
	}
	for i, item := range result.Items {
		fmt.Fprintf(w, "%3d. %s  %s %s\n", i+1,
			scoreStyle.Render(fmt.Sprintf("%.2f", item.PriorityScore)),
			sourceStyle.Render("["+item.SourceType.Label()+"]"),
			item.Title)
		if item.Subtitle != "" {
			fmt.Fprintf(w, "           %s\n", item.Subtitle)
		}
		fmt.Fprintf(w, "           %s\n", dimStyle.Render(item.Reasoning+"  ("+item.ID+")"))
	}

	var parts []string
	for _, st := range models.AllSourceTypes {
		if n := result.Stats.Distribution[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", st, n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(parts, ", "))
	}

	if len(result.SourceErrors) > 0 {
		failed := make([]string, 0, len(result.SourceErrors))
		for st := range result.SourceErrors {
			failed = append(failed, string(st))
		}
		sort.Strings(failed)
		fmt.Fprintln(w)
		for _, st := range failed {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("  source %s unavailable: %s", st, result.SourceErrors[models.SourceType(st)])))
		}
	}
}

func init() {
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "Output the ranking as JSON")
	rankCmd.Flags().Float64Var(&rankMinScore, "min-score", 0, "Override the minimum priority score")
	rankCmd.Flags().IntVar(&rankMaxItems, "max-items", 0, "Override the maximum number of items")
	rankCmd.Flags().IntVar(&rankMaxPerSource, "max-per-source", 0, "Override the per-source cap")
	rankCmd.Flags().BoolVar(&rankStrict, "strict", false, "Treat max-items as a hard ceiling, even for mandatory items")
	rootCmd.AddCommand(rankCmd)
}
