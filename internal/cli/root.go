package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

var (
	flagNow     string
	flagVerbose bool
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "bph",
	Short: "buildphase - construction schedule engine",
	Long: `buildphase (bph) turns a flat list of construction tasks into a phased
schedule: Preparation, Execution and Verification, each split into
material sub-timelines with progress, delay and conflict status.

Later phases stay locked until the previous phase's verification work is
done. When work runs late, bph proposes shifting the downstream due dates
and only writes them once you confirm.`,
	SilenceUsage:      true,
	PersistentPreRunE: applyGlobalFlags,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bph %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

// applyGlobalFlags runs before every command. Flags are parsed after the app
// is wired, so the clock override and verbosity are applied here.
func applyGlobalFlags(cmd *cobra.Command, args []string) error {
	nowOverride = time.Time{}
	if flagNow != "" {
		t, err := time.ParseInLocation("2006-01-02", flagNow, time.Local)
		if err != nil {
			return fmt.Errorf("parsing --now: expected YYYY-MM-DD, got %q", flagNow)
		}
		nowOverride = t
	}
	if flagVerbose && LogLevel != (zap.AtomicLevel{}) {
		LogLevel.SetLevel(zap.DebugLevel)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagNow, "now", "", "Evaluate the schedule as of this date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
