package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/history"
	"github.com/opsyield/opsyield/pkg/report"
)

var (
	analyzeProviders string
	analyzeJSON      bool
	analyzeOutput    string
	analyzeCSV       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full cost analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		result, err := runAnalysis(cmd, analyzeProviders)
		if err != nil {
			return err
		}

		recordHistory(cfg.History.Path, result)
		if window, err := history.NewLedger(history.NewFileBackend(cfg.History.Path)).Window(3); err == nil {
			for _, alert := range history.Trend(window, cfg.History.Budget).Alerts {
				logger.Warn("spend momentum alert", "alert", alert)
			}
		}

		if analyzeOutput != "" {
			f, err := os.Create(analyzeOutput)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			if err := report.WriteJSON(f, result); err != nil {
				return err
			}
			logger.Info("report written", "path", analyzeOutput)
		}

		if analyzeCSV != "" {
			f, err := os.Create(analyzeCSV)
			if err != nil {
				return fmt.Errorf("create csv file: %w", err)
			}
			defer f.Close()
			if err := report.WriteCSV(f, result); err != nil {
				return err
			}
		}

		if analyzeJSON {
			return report.WriteJSON(cmd.OutOrStdout(), result)
		}
		report.WriteConsole(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProviders, "providers", "", "comma-separated providers (default: configured provider)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the full report as JSON on stdout")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the JSON report to a file")
	analyzeCmd.Flags().StringVar(&analyzeCSV, "csv", "", "write optimization candidates to a CSV file")
}

// runAnalysis executes a single- or multi-provider run depending on the
// providers flag.
func runAnalysis(cmd *cobra.Command, providersFlag string) (*costmodel.AnalysisResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	pipe, err := buildPipeline(cfg)
	if err != nil {
		return nil, err
	}

	names := []string{cfg.Provider}
	if providersFlag != "" {
		names = nil
		for _, n := range strings.Split(providersFlag, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}

	if len(names) == 1 {
		return pipe.RunProvider(cmd.Context(), names[0])
	}
	return pipe.RunAll(cmd.Context(), names), nil
}

// recordHistory appends the run to the ledger; ledger problems are logged,
// never fatal.
func recordHistory(path string, result *costmodel.AnalysisResult) {
	ledger := history.NewLedger(history.NewFileBackend(path))
	err := ledger.Record(history.Entry{
		Timestamp:             result.Meta.GeneratedAt.Unix(),
		Provider:              result.Meta.Provider,
		TotalCost:             result.Summary.TotalCost,
		RiskScore:             result.Executive.RiskScore,
		AnomalyCount:          result.Executive.AnomalyCount,
		ViolationCount:        result.Executive.GovernanceViolations,
		OptimizationPotential: result.Executive.OptimizationPotential,
	})
	if err != nil {
		logger.Warn("history ledger append failed", "error", err)
	}
}
