package pipeline

import (
	"context"
	"math"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/risk"
	"github.com/opsyield/opsyield/pkg/engine/taskgroup"
)

// RunAll analyzes every named provider concurrently and merges the
// successful results. A provider failure lands in FailedProviders; it never
// aborts the aggregate. Zero successes yield an empty aggregate, not an
// error.
func (p *Pipeline) RunAll(ctx context.Context, names []string) *costmodel.AnalysisResult {
	tasks := make([]taskgroup.Task[*costmodel.AnalysisResult], len(names))
	for i, name := range names {
		name := name
		tasks[i] = func(ctx context.Context) (*costmodel.AnalysisResult, error) {
			return p.RunProvider(ctx, name)
		}
	}

	results := taskgroup.Join(ctx, p.concurrency, tasks)

	merged := &costmodel.AnalysisResult{
		Meta: costmodel.Meta{
			Provider:    "aggregate",
			PeriodDays:  p.periodDays,
			GeneratedAt: p.now().UTC(),
		},
		Executive: costmodel.ExecutiveSummary{
			ForecastRiskLevel: "Low",
		},
		Aggregates: costmodel.Aggregates{
			ByService:      map[string]float64{},
			ByTeam:         map[string]float64{},
			ByBusinessUnit: map[string]float64{},
			ByEnvironment:  map[string]float64{},
		},
		Histogram: map[string]int{},
	}

	var successes int
	var riskSum, trendSum, trendWeight float64
	for i, res := range results {
		if res.Err != nil {
			merged.FailedProviders = append(merged.FailedProviders, costmodel.ProviderFailure{
				Provider: names[i],
				Error:    res.Err.Error(),
			})
			continue
		}
		successes++
		riskSum += res.Value.Executive.RiskScore
		trendSum += res.Value.Executive.ForecastTrendPercent * res.Value.Summary.TotalCost
		trendWeight += res.Value.Summary.TotalCost
		accumulate(merged, res.Value)
	}

	if successes > 0 {
		trendPct := 0.0
		if trendWeight > 0 {
			trendPct = trendSum / trendWeight
		}
		finishAggregate(merged, riskSum/float64(successes), trendPct)
	}
	p.logger.Info("aggregate run complete",
		"providers", len(names), "succeeded", successes, "failed", len(merged.FailedProviders))
	return merged
}

func accumulate(into, from *costmodel.AnalysisResult) {
	into.Summary.TotalCost += from.Summary.TotalCost
	into.Summary.RecordCount += from.Summary.RecordCount
	into.Summary.ResourceCount += from.Summary.ResourceCount
	if into.Summary.Currency == "" {
		into.Summary.Currency = from.Summary.Currency
	}

	into.Anomalies = append(into.Anomalies, from.Anomalies...)
	into.Violations = append(into.Violations, from.Violations...)
	into.Candidates = append(into.Candidates, from.Candidates...)
	into.Findings = append(into.Findings, from.Findings...)
	into.Resources = append(into.Resources, from.Resources...)
	into.HighCostResources = append(into.HighCostResources, from.HighCostResources...)
	into.IdleResources = append(into.IdleResources, from.IdleResources...)
	into.WasteResources = append(into.WasteResources, from.WasteResources...)

	for k, v := range from.Aggregates.ByService {
		into.Aggregates.ByService[k] += v
	}
	for k, v := range from.Aggregates.ByTeam {
		into.Aggregates.ByTeam[k] += v
	}
	for k, v := range from.Aggregates.ByBusinessUnit {
		into.Aggregates.ByBusinessUnit[k] += v
	}
	for k, v := range from.Aggregates.ByEnvironment {
		into.Aggregates.ByEnvironment[k] += v
	}
	for k, v := range from.Histogram {
		into.Histogram[k] += v
	}

	into.Executive.OptimizationPotential += from.Executive.OptimizationPotential
	into.Executive.AnomalyCount += from.Executive.AnomalyCount
	into.Executive.GovernanceViolations += from.Executive.GovernanceViolations
}

// finishAggregate recomputes the derived executive fields over the merged
// totals; the risk score is the average over successful providers and the
// forecast trend is the spend-weighted average of theirs.
func finishAggregate(merged *costmodel.AnalysisResult, avgRisk, trendPct float64) {
	exec := &merged.Executive
	exec.TotalSpend = round2(merged.Summary.TotalCost)
	if merged.Summary.TotalCost > 0 {
		exec.WastePercentage = round2(exec.OptimizationPotential / merged.Summary.TotalCost * 100)
	}
	exec.RiskScore = round2(avgRisk)
	exec.ExposureCategory = risk.Exposure(exec.RiskScore)
	exec.ForecastTrendPercent = round2(trendPct)
	exec.ForecastRiskLevel = "Low"
	if trendPct > risk.ForecastRiskThresholdPct {
		exec.ForecastRiskLevel = "High"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
