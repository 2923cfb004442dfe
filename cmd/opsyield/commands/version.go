package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/opsyield/opsyield/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s/%s)\n",
			version.AppName, version.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
