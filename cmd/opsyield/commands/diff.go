package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opsyield/opsyield/pkg/report"
)

var (
	diffBaseline     string
	diffProviders    string
	diffThreshold    float64
	diffFailOnPolicy bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare a fresh analysis against a stored baseline",
	Long:  "Runs an analysis and diffs it against the named snapshot.\nExits 1 when the diff is a regression, making it usable as a CI gate.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		threshold := cfg.Snapshot.ThresholdPct
		if cmd.Flags().Changed("threshold") {
			threshold = diffThreshold
		}
		failOnPolicy := cfg.Snapshot.FailOnPolicy || diffFailOnPolicy

		mgr, err := snapshotManager(cmd.Context())
		if err != nil {
			return err
		}
		current, err := runAnalysis(cmd, diffProviders)
		if err != nil {
			return err
		}

		diff, err := mgr.CompareAgainst(cmd.Context(), diffBaseline, current, threshold, failOnPolicy)
		if err != nil {
			return err
		}

		// Stdout always carries the machine-readable diff document;
		// the styled rendering goes to stderr so piping stays clean.
		if err := report.WriteDiffJSON(cmd.OutOrStdout(), diff); err != nil {
			return err
		}
		report.WriteDiffConsole(cmd.ErrOrStderr(), diff)

		if diff.IsRegression {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffBaseline, "baseline", "baseline", "snapshot to compare against")
	diffCmd.Flags().StringVar(&diffProviders, "providers", "", "comma-separated providers")
	diffCmd.Flags().Float64Var(&diffThreshold, "threshold", 10, "cost increase percentage that counts as a regression")
	diffCmd.Flags().BoolVar(&diffFailOnPolicy, "fail-on-policy", false, "treat any governance violation as a regression")
}
