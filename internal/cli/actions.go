package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/internal/observability"
	"github.com/valter-silva-au/attention/pkg/models"
)

var (
	snoozeFor   string
	snoozeUntil string
)

// parseItemRef accepts either a single item id ("task-42") or a source type
// and source id pair ("task 42").
func parseItemRef(args []string) (models.SourceType, string, error) {
	switch len(args) {
	case 1:
		return models.ParseWorkItemID(args[0])
	case 2:
		st, err := models.ParseSourceType(args[0])
		if err != nil {
			return "", "", err
		}
		return st, args[1], nil
	default:
		return "", "", fmt.Errorf("expected <item-id> or <source-type> <source-id>")
	}
}

func logAction(eventType string, st models.SourceType, id string, extra map[string]any) {
	if ActionLog == nil {
		return
	}
	data := map[string]any{
		"source_type": string(st),
		"source_id":   id,
		"item_id":     models.WorkItemID(st, id),
	}
	for k, v := range extra {
		data[k] = v
	}
	_ = ActionLog.LogEvent(eventType, data) // Non-fatal: the action already succeeded.
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <item-id> | <source-type> <source-id>",
	Short: "Mark an item as done in its source store",
	Long: `Resolve an item in the store that owns it. Tasks are completed and inbox
messages and reading items marked read. Companies are stamped as contacted
now, meetings are dismissed, and recurring commitments advance to their next
occurrence.

Examples:
  attn resolve task-42
  attn resolve inbox msg-7`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeItemIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Actions == nil {
			return fmt.Errorf("source stores not initialized")
		}
		st, id, err := parseItemRef(args)
		if err != nil {
			return err
		}

		if err := Actions.Resolve(commandContext(cmd), st, id); err != nil {
			return fmt.Errorf("resolving %s: %w", models.WorkItemID(st, id), err)
		}
		logAction(observability.EventActionResolved, st, id, nil)

		fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s\n", models.WorkItemID(st, id))
		return nil
	},
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze <item-id> | <source-type> <source-id>",
	Short: "Hide an item from the ranking until a later time",
	Long: `Snooze an item so it is excluded from the ranking until the given time.

Use --for with a relative duration (e.g. 4h, 3d) or --until with an RFC 3339
timestamp. Calendar events cannot be snoozed.

Examples:
  attn snooze task-42 --for 3d
  attn snooze portfolio_company acme --until 2026-04-01T09:00:00Z`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeItemIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Actions == nil {
			return fmt.Errorf("source stores not initialized")
		}
		st, id, err := parseItemRef(args)
		if err != nil {
			return err
		}
		until, err := parseSnoozeUntil(time.Now().UTC(), snoozeFor, snoozeUntil)
		if err != nil {
			return err
		}

		if err := Actions.Snooze(commandContext(cmd), st, id, until); err != nil {
			return fmt.Errorf("snoozing %s: %w", models.WorkItemID(st, id), err)
		}
		logAction(observability.EventActionSnoozed, st, id, map[string]any{
			"until": until.Format(time.RFC3339),
		})

		fmt.Fprintf(cmd.OutOrStdout(), "Snoozed %s until %s\n", models.WorkItemID(st, id), until.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

// parseSnoozeUntil resolves exactly one of --for and --until into an absolute
// time that must lie after now.
func parseSnoozeUntil(now time.Time, forStr, untilStr string) (time.Time, error) {
	forStr = strings.TrimSpace(forStr)
	untilStr = strings.TrimSpace(untilStr)

	var until time.Time
	switch {
	case forStr != "" && untilStr != "":
		return time.Time{}, fmt.Errorf("use either --for or --until, not both")
	case forStr != "":
		d, err := parseDayHourDuration(forStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing --for: %w", err)
		}
		until = now.Add(d)
	case untilStr != "":
		t, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing --until: %w", err)
		}
		until = t
	default:
		return time.Time{}, fmt.Errorf("one of --for or --until is required")
	}

	if !until.After(now) {
		return time.Time{}, fmt.Errorf("snooze time %s is not in the future", until.Format(time.RFC3339))
	}
	return until, nil
}

func init() {
	snoozeCmd.Flags().StringVar(&snoozeFor, "for", "", "Snooze for a duration (e.g. 4h, 3d)")
	snoozeCmd.Flags().StringVar(&snoozeUntil, "until", "", "Snooze until an RFC 3339 time")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(snoozeCmd)
}
