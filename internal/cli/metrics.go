package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display scheduling metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include rebuild counts, proposed and applied shift plans, discarded
plans, and expansions rejected because a phase was locked.`,
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

		// Table format.
		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Rebuilds:", metrics.Rebuilds)
		fmt.Fprintf(out, "  %-24s %d\n", "Plans proposed:", metrics.PlansProposed)
		fmt.Fprintf(out, "  %-24s %d\n", "Proposals:", metrics.ProposalsTotal)
		fmt.Fprintf(out, "  %-24s %d\n", "Shifts applied:", metrics.ShiftsApplied)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks shifted:", metrics.TasksShifted)
		fmt.Fprintf(out, "  %-24s %d\n", "Plans discarded:", metrics.PlansDiscarded)
		fmt.Fprintf(out, "  %-24s %d\n", "Expansions rejected:", metrics.ExpandRejections)

		if len(metrics.RejectionsByPhase) > 0 {
			fmt.Fprintln(out, "\n  Rejections by phase:")
			phases := make([]string, 0, len(metrics.RejectionsByPhase))
			for phase := range metrics.RejectionsByPhase {
				phases = append(phases, phase)
			}
			sort.Strings(phases)
			for _, phase := range phases {
				fmt.Fprintf(out, "    %-20s %d\n", phase+":", metrics.RejectionsByPhase[phase])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
