// Package config defines the runtime configuration surface: analysis
// thresholds, governance behavior, snapshot gating and server settings.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration tree.
type Config struct {
	Provider   string           `mapstructure:"provider"`
	PeriodDays int              `mapstructure:"period_days"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Watchers   WatcherConfig    `mapstructure:"watchers"`
	Governance GovernanceConfig `mapstructure:"governance"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	History    HistoryConfig    `mapstructure:"history"`
	Server     ServerConfig     `mapstructure:"server"`
}

// AnalyticsConfig holds anomaly detection thresholds.
type AnalyticsConfig struct {
	// ZMedium and ZHigh are the z-score cutoffs for medium and high
	// severity anomalies.
	ZMedium float64 `mapstructure:"z_medium"`
	ZHigh   float64 `mapstructure:"z_high"`
}

// WatcherConfig holds the per-watcher tuning knobs.
type WatcherConfig struct {
	Idle  IdleConfig  `mapstructure:"idle"`
	Spike SpikeConfig `mapstructure:"spike"`
}

type IdleConfig struct {
	// CPUThreshold is the utilization percentage below which a resource
	// counts as idle.
	CPUThreshold float64 `mapstructure:"cpu_threshold"`
}

type SpikeConfig struct {
	// Multiplier is how far above the prior-day mean the latest day must
	// land to flag a spike.
	Multiplier float64 `mapstructure:"multiplier"`
	// MinLatestCost filters out spikes on negligible absolute spend.
	MinLatestCost float64 `mapstructure:"min_latest_cost"`
}

// GovernanceConfig controls policy loading and evaluation.
type GovernanceConfig struct {
	PolicyFile string `mapstructure:"policy_file"`
	// FailClosed aborts the run on malformed policy input instead of
	// evaluating the subset that parsed.
	FailClosed bool `mapstructure:"fail_closed"`
}

// PipelineConfig controls concurrency and status caching.
type PipelineConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	StatusTimeout  time.Duration `mapstructure:"status_timeout"`
	StatusCacheTTL time.Duration `mapstructure:"status_cache_ttl"`
}

// SnapshotConfig controls where snapshots live and how diffs gate.
type SnapshotConfig struct {
	Dir          string  `mapstructure:"dir"`
	Bucket       string  `mapstructure:"bucket"`
	ThresholdPct float64 `mapstructure:"threshold_pct"`
	FailOnPolicy bool    `mapstructure:"fail_on_policy"`
}

// HistoryConfig controls the run ledger.
type HistoryConfig struct {
	Path   string  `mapstructure:"path"`
	Budget float64 `mapstructure:"budget"`
}

// ServerConfig holds the read-only API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Provider:   "mock",
		PeriodDays: 30,
		Analytics: AnalyticsConfig{
			ZMedium: 2.0,
			ZHigh:   3.0,
		},
		Watchers: WatcherConfig{
			Idle:  IdleConfig{CPUThreshold: 5.0},
			Spike: SpikeConfig{Multiplier: 1.5, MinLatestCost: 10.0},
		},
		Governance: GovernanceConfig{
			FailClosed: false,
		},
		Pipeline: PipelineConfig{
			Concurrency:    4,
			StatusTimeout:  20 * time.Second,
			StatusCacheTTL: 5 * time.Minute,
		},
		Snapshot: SnapshotConfig{
			Dir:          ".opsyield",
			ThresholdPct: 10.0,
		},
		Server: ServerConfig{
			Addr: ":8087",
		},
	}
}

// Load merges viper's resolved values (file, env, flags) over the defaults.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engines cannot operate on.
func (c Config) Validate() error {
	if c.PeriodDays <= 0 {
		return fmt.Errorf("period_days must be positive, got %d", c.PeriodDays)
	}
	if c.Analytics.ZMedium <= 0 || c.Analytics.ZHigh <= 0 {
		return fmt.Errorf("z-score thresholds must be positive")
	}
	if c.Analytics.ZHigh < c.Analytics.ZMedium {
		return fmt.Errorf("z_high (%v) must be >= z_medium (%v)", c.Analytics.ZHigh, c.Analytics.ZMedium)
	}
	if c.Watchers.Spike.Multiplier <= 1 {
		return fmt.Errorf("spike multiplier must be > 1, got %v", c.Watchers.Spike.Multiplier)
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline concurrency must be positive, got %d", c.Pipeline.Concurrency)
	}
	return nil
}
