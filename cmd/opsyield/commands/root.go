// Package commands wires the CLI: analyze, snapshot, diff, providers,
// serve, version.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/opsyield/opsyield/pkg/config"
	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/analytics"
	"github.com/opsyield/opsyield/pkg/engine/governance"
	"github.com/opsyield/opsyield/pkg/engine/pipeline"
	"github.com/opsyield/opsyield/pkg/engine/provider"
	providerAWS "github.com/opsyield/opsyield/pkg/engine/provider/aws"
	"github.com/opsyield/opsyield/pkg/engine/watch"
	"github.com/opsyield/opsyield/pkg/telemetry"
	"github.com/opsyield/opsyield/pkg/version"
)

var (
	cfgFile      string
	verbose      bool
	otelEndpoint string
	awsRegion    string
	awsProfile   string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "opsyield",
	Short:   "Cost intelligence for cloud spend",
	Long:    "opsyield ingests cloud cost and resource data, detects anomalies and waste,\nevaluates governance policies, and gates deployments on cost regressions.",
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		shutdown, err := telemetry.Init(cmd.Context(), version.AppName, version.Version, otelEndpoint)
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
			return nil
		}
		cobra.OnFinalize(func() {
			_ = shutdown(context.Background())
		})
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.opsyield.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP trace endpoint")

	// Bound flags must carry the real defaults: viper reports an unchanged
	// flag's default as a value, which would otherwise shadow config.Default().
	defaults := config.Default()
	pf.String("provider", defaults.Provider, "provider to analyze (mock, aws)")
	pf.Int("period", defaults.PeriodDays, "analysis window in days")
	pf.String("policy-file", defaults.Governance.PolicyFile, "governance policy YAML")
	pf.StringVar(&awsRegion, "region", "", "AWS region")
	pf.StringVar(&awsProfile, "profile", "", "AWS shared config profile")

	_ = viper.BindPFlag("provider", pf.Lookup("provider"))
	_ = viper.BindPFlag("period_days", pf.Lookup("period"))
	_ = viper.BindPFlag("governance.policy_file", pf.Lookup("policy-file"))

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.SetConfigFile(filepath.Join(home, ".opsyield.yaml"))
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("OPSYIELD")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSensitiveData,
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// redactSensitiveData scrubs credential-shaped keys from log output.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"account": true, "password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"credential": true, "connection_string": true,
	}
	if sensitiveKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
	}
	return a
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

func buildRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register("mock", func(ctx context.Context) (provider.Gateway, error) {
		return provider.NewMockGateway(anchorTime()), nil
	})
	registry.Register("aws", func(ctx context.Context) (provider.Gateway, error) {
		session, err := providerAWS.NewSession(ctx, awsRegion, awsProfile)
		if err != nil {
			return nil, err
		}
		return providerAWS.NewGateway(session, logger), nil
	})
	return registry
}

// anchorTime pins the mock dataset to OPSYIELD_MOCK_ANCHOR when set, so
// demos and CI produce stable output.
func anchorTime() (t time.Time) {
	if v := os.Getenv("OPSYIELD_MOCK_ANCHOR"); v != "" {
		if parsed, err := time.Parse(costmodel.DateLayout, v); err == nil {
			return parsed
		}
	}
	return
}

func buildGovernance(cfg config.Config) (*governance.Engine, error) {
	if cfg.Governance.PolicyFile == "" {
		return nil, nil
	}
	eng, err := governance.New(logger)
	if err != nil {
		return nil, err
	}
	if err := eng.LoadFile(cfg.Governance.PolicyFile, cfg.Governance.FailClosed); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	return eng, nil
}

func analyticsConfig(cfg config.Config) analytics.Config {
	return analytics.Config{ZMedium: cfg.Analytics.ZMedium, ZHigh: cfg.Analytics.ZHigh}
}

func buildPipeline(cfg config.Config) (*pipeline.Pipeline, error) {
	gov, err := buildGovernance(cfg)
	if err != nil {
		return nil, err
	}
	idle := watch.DefaultIdleConfig()
	idle.CPUThreshold = cfg.Watchers.Idle.CPUThreshold
	spike := watch.DefaultSpikeConfig()
	spike.Multiplier = cfg.Watchers.Spike.Multiplier
	spike.MinLatestCost = cfg.Watchers.Spike.MinLatestCost

	return pipeline.New(pipeline.Options{
		Registry:       buildRegistry(),
		Analytics:      analyticsConfig(cfg),
		Idle:           idle,
		Spike:          spike,
		Governance:     gov,
		Logger:         logger,
		PeriodDays:     cfg.PeriodDays,
		Concurrency:    cfg.Pipeline.Concurrency,
		StatusTimeout:  cfg.Pipeline.StatusTimeout,
		StatusCacheTTL: cfg.Pipeline.StatusCacheTTL,
	}), nil
}
