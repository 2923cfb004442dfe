package commands

import (
	"github.com/spf13/cobra"

	"github.com/opsyield/opsyield/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest analysis over HTTP",
	Long:  "Runs one analysis up front, then serves it read-only on /api/v1/report\nalongside /healthz and /api/v1/providers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		pipe, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		initial, err := pipe.RunProvider(cmd.Context(), cfg.Provider)
		if err != nil {
			logger.Warn("initial analysis failed, serving without a report", "error", err)
		}

		api := server.New(logger, server.Config{Addr: cfg.Server.Addr}, pipe, initial)
		return api.Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}
