package watch

import (
	"fmt"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// IdleConfig holds the idle scoring thresholds.
type IdleConfig struct {
	CPUThreshold float64 `mapstructure:"cpu_threshold"`
	EmitScore    float64 `mapstructure:"emit_score"`
	HighScore    float64 `mapstructure:"high_score"`
}

// DefaultIdleConfig returns the reference thresholds: CPU below 5%, emit at
// score 50, high severity at 80.
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{CPUThreshold: 5.0, EmitScore: 50, HighScore: 80}
}

// IdleWatcher scores resources on utilization and lifecycle state.
type IdleWatcher struct {
	cfg IdleConfig
}

func NewIdleWatcher(cfg IdleConfig) IdleWatcher {
	return IdleWatcher{cfg: cfg}
}

func (IdleWatcher) Name() string { return "idle" }

func (w IdleWatcher) Watch(resources []costmodel.Resource, _ []costmodel.NormalizedCost) ([]costmodel.Finding, error) {
	var findings []costmodel.Finding
	for _, r := range resources {
		score, reasons := IdleScore(w.cfg, r)
		if score < w.cfg.EmitScore {
			continue
		}

		severity := costmodel.SeverityMedium
		if score >= w.cfg.HighScore {
			severity = costmodel.SeverityHigh
		}

		f := costmodel.Finding{
			Kind:     costmodel.KindIdleResource,
			Subject:  r.ID,
			Severity: severity,
			Reasons:  reasons,
			Score:    score,
		}
		if r.Cost30d != nil {
			f.Cost = *r.Cost30d
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// IdleScore computes the clamped idle score and its reasons. Shared with
// the pipeline's enrichment stage so resource intelligence fields and idle
// findings agree.
func IdleScore(cfg IdleConfig, r costmodel.Resource) (float64, []string) {
	score := 0.0
	var reasons []string

	if r.CPUAvg != nil && *r.CPUAvg < cfg.CPUThreshold {
		score += 50
		reasons = append(reasons, fmt.Sprintf("low CPU: %.1f%%", *r.CPUAvg))
	}
	if r.State == costmodel.StateStopped || r.State == costmodel.StateTerminated {
		score += 30
		reasons = append(reasons, fmt.Sprintf("resource is %s", r.State))
	}

	return costmodel.ClampScore(score), reasons
}
