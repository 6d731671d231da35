package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

var expandCmd = &cobra.Command{
	Use:   "expand <phase>",
	Short: "Show a phase's sub-timelines and tasks",
	Long: `Expand one phase to list its sub-timelines and every task in them.

The phase may be given by name (preparation, execution, verification) or by
index (0-2). A locked phase cannot be expanded; the lock reason is shown.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"preparation", "execution", "verification"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}
		id, err := models.ParsePhaseID(args[0])
		if err != nil {
			return err
		}
		sched, err := Service.Current(cmd.Context())
		if err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}

		ok, reason := Service.ExpandPhase(id)
		if !ok {
			return fmt.Errorf("%s is locked: %s", id, reason)
		}

		out := cmd.OutOrStdout()
		p := sched.Phase(id)
		renderPhaseHeader(out, p)
		if len(p.SubTimelines) == 0 {
			fmt.Fprintln(out, "  no tasks")
			return nil
		}
		for _, st := range p.SubTimelines {
			renderSubTimeline(out, st, true)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expandCmd)
}
