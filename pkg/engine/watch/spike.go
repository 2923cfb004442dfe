package watch

import (
	"fmt"
	"sort"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// SpikeConfig holds the cost-spike detection thresholds.
type SpikeConfig struct {
	Multiplier     float64 `mapstructure:"multiplier"`
	MinLatestCost  float64 `mapstructure:"min_latest_cost"`
	HighCostCutoff float64 `mapstructure:"high_cost_cutoff"`
}

// DefaultSpikeConfig returns the reference thresholds: flag at 1.5x the
// prior mean, ignore latest-day totals under $10, high severity over $100.
func DefaultSpikeConfig() SpikeConfig {
	return SpikeConfig{Multiplier: 1.5, MinLatestCost: 10, HighCostCutoff: 100}
}

// SpikeWatcher compares each service's latest-day spend against the mean of
// all prior days in the period.
type SpikeWatcher struct {
	cfg SpikeConfig
}

func NewSpikeWatcher(cfg SpikeConfig) SpikeWatcher {
	return SpikeWatcher{cfg: cfg}
}

func (SpikeWatcher) Name() string { return "cost-spike" }

func (w SpikeWatcher) Watch(_ []costmodel.Resource, costs []costmodel.NormalizedCost) ([]costmodel.Finding, error) {
	// service -> day -> total
	perService := map[string]map[string]float64{}
	daySet := map[string]struct{}{}
	for _, c := range costs {
		byDay, ok := perService[c.Service]
		if !ok {
			byDay = map[string]float64{}
			perService[c.Service] = byDay
		}
		d := c.Day()
		byDay[d] += c.Amount
		daySet[d] = struct{}{}
	}

	days := make([]string, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Strings(days)
	if len(days) < 2 {
		return nil, nil
	}
	latestDay := days[len(days)-1]
	priorDays := days[:len(days)-1]

	services := make([]string, 0, len(perService))
	for s := range perService {
		services = append(services, s)
	}
	sort.Strings(services)

	var findings []costmodel.Finding
	for _, svc := range services {
		byDay := perService[svc]
		latest := byDay[latestDay]
		if latest < w.cfg.MinLatestCost {
			continue
		}

		// Days with no spend for this service count as zero, pulling the
		// baseline down the way a newly ramping service should.
		priorSum := 0.0
		for _, d := range priorDays {
			priorSum += byDay[d]
		}
		priorMean := priorSum / float64(len(priorDays))
		if priorMean <= 0 || latest <= priorMean*w.cfg.Multiplier {
			continue
		}

		severity := costmodel.SeverityMedium
		if latest > w.cfg.HighCostCutoff {
			severity = costmodel.SeverityHigh
		}
		increase := (latest - priorMean) / priorMean * 100

		findings = append(findings, costmodel.Finding{
			Kind:         costmodel.KindCostSpike,
			Subject:      svc,
			Severity:     severity,
			Reasons:      []string{fmt.Sprintf("%s spend on %s is $%.2f vs prior mean $%.2f (+%.1f%%)", svc, latestDay, latest, priorMean, increase)},
			Cost:         latest,
			DeviationPct: increase,
		})
	}
	return findings, nil
}
