package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/internal/core"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

var shiftYes bool

var shiftCmd = &cobra.Command{
	Use:   "shift",
	Short: "Review the proposed due-date shift",
	Long: `Show the auto-shift plan proposed for delayed work.

When a sub-timeline is late, every later incomplete task in the same phase
and all later phases is proposed to move by the delay. Nothing changes until
the plan is applied with 'bph shift apply'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showShift(cmd)
	},
}

var shiftShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the proposed due-date shift",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showShift(cmd)
	},
}

var shiftApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write the proposed due dates to the task store",
	Long: `Apply the pending auto-shift plan. Every due date is written or none is.

Without --yes the plan is printed and confirmation is read from stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}
		if _, err := Service.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}
		plan := Service.ProposedShift()
		out := cmd.OutOrStdout()
		if plan == nil {
			fmt.Fprintln(out, "No shift proposed. Nothing to apply.")
			return nil
		}

		renderPlan(out, plan)
		if !shiftYes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Apply %d due date change(s)?", len(plan.Proposals))) {
			fmt.Fprintln(out, "Aborted. No due dates changed.")
			return nil
		}

		updates, err := Service.ApplyShift(cmd.Context())
		if err != nil {
			if errors.Is(err, core.ErrPlanCollision) {
				return fmt.Errorf("%w (set shift.policy: max to apply the largest shift per task)", err)
			}
			return fmt.Errorf("applying shift: %w", err)
		}
		fmt.Fprintf(out, "Updated %d due date(s).\n", len(updates))
		return nil
	},
}

var shiftDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Discard the proposed due-date shift",
	Long: `Discard the pending plan without changing any task.

The plan is advisory and never saved. Discarding clears it for the
current process only: the next bph command rebuilds the schedule and
proposes the same plan again while the delayed work is still late.
Discarding lasts longer only inside the long-running modes (bph serve,
bph mcp serve and bph dashboard), where it holds until the next rebuild.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}
		if _, err := Service.Current(cmd.Context()); err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}
		if Service.DiscardShift() {
			fmt.Fprintln(cmd.OutOrStdout(), "Shift plan discarded.")
			fmt.Fprintln(cmd.OutOrStdout(), "It will be proposed again on the next run while tasks stay late.")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No shift proposed.")
		}
		return nil
	},
}

func showShift(cmd *cobra.Command) error {
	if Service == nil {
		return fmt.Errorf("schedule service not initialized")
	}
	if _, err := Service.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("building schedule: %w", err)
	}
	plan := Service.ProposedShift()
	if plan == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No shift proposed. Nothing is delayed.")
		return nil
	}
	renderPlan(cmd.OutOrStdout(), plan)
	return nil
}

func renderPlan(w io.Writer, plan *models.AutoShiftPlan) {
	fmt.Fprintf(w, "%d shift proposal(s):\n\n", len(plan.Proposals))
	for _, p := range plan.Proposals {
		fmt.Fprintf(w, "  %-10s %s -> %s  (+%dd, caused by %s)\n",
			p.TaskID,
			p.OriginalDueDate.Format("2006-01-02"),
			p.NewDueDate.Format("2006-01-02"),
			p.ShiftDays,
			p.CausedBy)
	}
	if ids := plan.Collisions(); len(ids) > 0 {
		fmt.Fprintf(w, "\n  Multiple proposals for: %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintln(w)
}

// confirm asks a yes/no question and reads the answer from in. Anything but
// y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	shiftApplyCmd.Flags().BoolVarP(&shiftYes, "yes", "y", false, "Apply without asking for confirmation")
	shiftCmd.AddCommand(shiftShowCmd, shiftApplyCmd, shiftDiscardCmd)
	rootCmd.AddCommand(shiftCmd)
}
