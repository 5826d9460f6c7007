package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/pkg/models"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display ranking and action metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include ranking runs, items selected per run and per source, average
priority score, mandatory-item overflow, source failures, dropped items, and
resolve/snooze counts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			return writeJSON(out, metrics)
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Ranking runs:", metrics.Runs)
		fmt.Fprintf(out, "  %-24s %.1f\n", "Avg items per run:", metrics.AvgSelected)
		fmt.Fprintf(out, "  %-24s %.2f\n", "Avg priority score:", metrics.AvgScore)
		fmt.Fprintf(out, "  %-24s %d\n", "Mandatory overflows:", metrics.OverflowRuns)
		fmt.Fprintf(out, "  %-24s %d\n", "Items dropped:", metrics.ItemsDropped)
		fmt.Fprintf(out, "  %-24s %d\n", "Resolved:", metrics.Resolved)
		fmt.Fprintf(out, "  %-24s %d\n", "Snoozed:", metrics.Snoozed)

		printSourceCounts(out, "Selected by source:", metrics.SelectedBySource)
		printSourceCounts(out, "Source failures:", metrics.SourceFailures)

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func printSourceCounts(out io.Writer, header string, counts map[string]int) {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return
	}
	fmt.Fprintf(out, "\n  %s\n", header)
	for _, st := range models.AllSourceTypes {
		if n := counts[string(st)]; n > 0 {
			fmt.Fprintf(out, "    %-22s %d\n", string(st)+":", n)
		}
	}
}

// parseDayHourDuration parses a human-friendly duration string like "7d" or
// "24h".
func parseDayHourDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return 0, fmt.Errorf("invalid hour duration %q", s)
		}
		return time.Duration(hours) * time.Hour, nil
	}

	return 0, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

// parseSinceDuration parses a duration like "7d" and returns the
// corresponding time in the past. Empty input means seven days.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	if strings.TrimSpace(s) == "" {
		return now.AddDate(0, 0, -7), nil
	}
	d, err := parseDayHourDuration(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
