package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/internal/observability"
)

var alertsNotify bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Rebuild the schedule and display any triggered alerts.

Alerts cover delayed sub-timelines, weather and crew conflicts, and locked
phases that still have pending work. With --notify the alerts are also posted
to the configured Slack webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (observability may be disabled)")
		}
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}

		sched, err := Service.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}
		alerts := sortAlerts(AlertEngine.Evaluate(sched))

		out := cmd.OutOrStdout()
		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
		} else {
			fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
			for _, alert := range alerts {
				severity := strings.ToUpper(string(alert.Severity))
				fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
				fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02"))
			}
		}

		if !alertsNotify {
			return nil
		}
		if Notifier == nil {
			return fmt.Errorf("notifications are not configured (set notifications.enabled and notifications.slack.webhook_url)")
		}
		if len(alerts) == 0 {
			return nil
		}
		if err := Notifier.Notify(cmd.Context(), alerts); err != nil {
			return fmt.Errorf("sending notification: %w", err)
		}
		fmt.Fprintf(out, "Sent %d alert(s) to Slack.\n", len(alerts))
		return nil
	},
}

// sortAlerts orders alerts high severity first, keeping evaluation order
// within a severity.
func sortAlerts(alerts []observability.Alert) []observability.Alert {
	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
	})
	return alerts
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
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post the alerts to the configured Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}
