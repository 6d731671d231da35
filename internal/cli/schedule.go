package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

var scheduleJSON bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the phased schedule",
	Long: `Rebuild the schedule from the data directory and print every phase with
its sub-timelines, progress, delays and conflicts.

Locked phases are listed with the reason they are locked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}
		sched, err := Service.Refresh(cmd.Context())
		if err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}

		out := cmd.OutOrStdout()
		if scheduleJSON {
			return writeJSON(out, sched)
		}
		renderSchedule(out, sched)
		return nil
	},
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderSchedule prints the phase tree as plain text.
func renderSchedule(w io.Writer, sched models.Schedule) {
	fmt.Fprintf(w, "Schedule as of %s\n", sched.Now.Format("2006-01-02"))
	for _, p := range sched.Phases {
		fmt.Fprintln(w)
		renderPhaseHeader(w, p)
		if p.Locked {
			fmt.Fprintf(w, "  locked: %s\n", p.LockReason)
			continue
		}
		if len(p.SubTimelines) == 0 {
			fmt.Fprintln(w, "  no tasks")
			continue
		}
		for _, st := range p.SubTimelines {
			renderSubTimeline(w, st, false)
		}
	}
	if plan := sched.Plan; !plan.IsEmpty() {
		fmt.Fprintf(w, "\n%d shift proposal(s) pending. Run 'bph shift' to review.\n", len(plan.Proposals))
	}
}

func renderPhaseHeader(w io.Writer, p models.Phase) {
	var flags []string
	if p.Locked {
		flags = append(flags, "LOCKED")
	}
	if p.Delayed {
		flags = append(flags, fmt.Sprintf("DELAYED %dd", p.DelayDays))
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = "  [" + strings.Join(flags, ", ") + "]"
	}
	fmt.Fprintf(w, "%d. %-13s %s %3d%%  %s%s\n",
		int(p.ID)+1, p.Name, progressBar(p.Progress, 20), p.Progress, formatRange(p.Range), suffix)
}

// renderSubTimeline prints one sub-timeline line, and its tasks when
// withTasks is set.
func renderSubTimeline(w io.Writer, st models.SubTimeline, withTasks bool) {
	var badges []string
	if st.Delayed {
		badges = append(badges, fmt.Sprintf("delayed %dd", st.DelayDays))
	}
	if st.ConflictStatus.HasWeather() {
		badges = append(badges, "weather")
	}
	if st.ConflictStatus.HasGPS() {
		badges = append(badges, "crew")
	}
	suffix := ""
	if len(badges) > 0 {
		suffix = "  (" + strings.Join(badges, ", ") + ")"
	}
	fmt.Fprintf(w, "   - %-16s %s %3d%%  %s%s\n",
		st.Label, progressBar(st.Progress, 10), st.Progress, formatRange(st.Range), suffix)
	if st.ConflictMessage != "" {
		fmt.Fprintf(w, "     ! %s\n", st.ConflictMessage)
	}
	if !withTasks {
		return
	}
	for _, t := range st.Tasks {
		mark := " "
		switch t.Status {
		case models.StatusCompleted:
			mark = "x"
		case models.StatusInProgress:
			mark = "~"
		}
		fmt.Fprintf(w, "       [%s] %-8s %-36s %s\n", mark, t.ID, t.Title, formatDue(t.DueDate))
	}
}

// progressBar renders pct (0-100) as a fixed-width bar.
func progressBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func formatRange(r models.DateRange) string {
	if r.IsEmpty() {
		return "no dates"
	}
	if r.Start.Equal(*r.End) {
		return r.Start.Format("Jan 2")
	}
	return r.Start.Format("Jan 2") + " - " + r.End.Format("Jan 2")
}

func formatDue(d *time.Time) string {
	if d == nil || d.IsZero() {
		return "no due date"
	}
	return "due " + d.Format("2006-01-02")
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleJSON, "json", false, "Output the schedule as JSON")
	rootCmd.AddCommand(scheduleCmd)
}
