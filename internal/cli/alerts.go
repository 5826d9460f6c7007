package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/internal/observability"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the event log and display any triggered alerts.

Alerts check for sources that keep failing, mandatory items overflowing
max_items, items dropped by validation, and runs that rank nothing.

With --notify, alerts are also posted to the configured Slack webhook
(alerts.slack_webhook).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		sortAlerts(alerts)
		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
			fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		notify, _ := cmd.Flags().GetBool("notify")
		if notify {
			if Notifier == nil {
				return fmt.Errorf("notifier not configured (set alerts.slack_webhook)")
			}
			if err := Notifier.Notify(commandContext(cmd), alerts); err != nil {
				return fmt.Errorf("sending notifications: %w", err)
			}
			fmt.Fprintln(out, "Notification sent.")
		}

		return nil
	},
}

// sortAlerts orders alerts high severity first, keeping evaluation order
// within a severity.
func sortAlerts(alerts []observability.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
	})
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

func init() {
	alertsCmd.Flags().Bool("notify", false, "Send alerts to the configured Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}
