package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var providersJSON bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Health-check every configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pipe, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		statuses := pipe.Status(cmd.Context())
		if providersJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(statuses)
		}

		for _, s := range statuses {
			state := "healthy"
			if !s.Healthy {
				state = "unhealthy: " + s.Error
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s (%dms)\n", s.Provider, state, s.LatencyMS)
		}
		return nil
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "emit status as JSON")
}
