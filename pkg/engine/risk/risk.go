// Package risk folds the analysis outputs into a single bounded composite
// score and the executive summary around it.
package risk

import (
	"math"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// Exposure categories, from a discretized risk score.
const (
	ExposureCritical = "CRITICAL"
	ExposureHigh     = "HIGH"
	ExposureModerate = "MODERATE"
	ExposureLow      = "LOW"
)

// Component weights. Waste and governance dominate because they are the
// directly actionable levers; anomalies and trend are leading indicators.
const (
	wasteWeight     = 0.3
	anomalyWeight   = 0.2
	violationWeight = 0.3
	trendWeight     = 0.2

	pointsPerAnomaly   = 5
	pointsPerViolation = 10
)

// Components returns the weighted contribution of each factor. Each input
// is capped before weighting so the sum stays in [0,100].
func Components(wastePct float64, anomalyCount, violationCount int, forecastTrendPct float64) costmodel.RiskComponents {
	c := costmodel.RiskComponents{
		Waste:     math.Min(wastePct, 100) * wasteWeight,
		Anomaly:   math.Min(float64(anomalyCount)*pointsPerAnomaly, 100) * anomalyWeight,
		Violation: math.Min(float64(violationCount)*pointsPerViolation, 100) * violationWeight,
	}
	if forecastTrendPct > 0 {
		c.Trend = math.Min(forecastTrendPct, 100) * trendWeight
	}
	return c
}

// ComputeScore returns the composite risk score in [0,100], rounded to two
// decimals. Monotonically non-decreasing in every input.
func ComputeScore(wastePct float64, anomalyCount, violationCount int, forecastTrendPct float64) float64 {
	c := Components(wastePct, anomalyCount, violationCount, forecastTrendPct)
	score := c.Waste + c.Anomaly + c.Violation + c.Trend
	return costmodel.ClampScore(math.Round(score*100) / 100)
}

// Exposure buckets a risk score.
func Exposure(score float64) string {
	switch {
	case score > 75:
		return ExposureCritical
	case score > 50:
		return ExposureHigh
	case score > 25:
		return ExposureModerate
	default:
		return ExposureLow
	}
}

// SummaryInput carries everything the executive summary derives from.
type SummaryInput struct {
	TotalCost             float64
	OptimizationPotential float64
	AnomalyCount          int
	ViolationCount        int
	TrendPercent          float64
	UnallocatedCost       float64
}

// ForecastRiskThresholdPct is the trend above which forecast risk reads High.
const ForecastRiskThresholdPct = 20.0

// GenerateExecutiveSummary derives the waste percentage, scores the run,
// and packages the headline fields.
func GenerateExecutiveSummary(in SummaryInput) costmodel.ExecutiveSummary {
	wastePct := 0.0
	unallocatedPct := 0.0
	if in.TotalCost > 0 {
		wastePct = in.OptimizationPotential / in.TotalCost * 100
		unallocatedPct = in.UnallocatedCost / in.TotalCost * 100
	}

	forecastRisk := "Low"
	if in.TrendPercent > ForecastRiskThresholdPct {
		forecastRisk = "High"
	}

	score := ComputeScore(wastePct, in.AnomalyCount, in.ViolationCount, in.TrendPercent)

	return costmodel.ExecutiveSummary{
		TotalSpend:            round2(in.TotalCost),
		WastePercentage:       round2(wastePct),
		OptimizationPotential: round2(in.OptimizationPotential),
		AnomalyCount:          in.AnomalyCount,
		GovernanceViolations:  in.ViolationCount,
		ForecastRiskLevel:     forecastRisk,
		ForecastTrendPercent:  in.TrendPercent,
		UnallocatedCostPct:    round2(unallocatedPct),
		RiskScore:             score,
		ExposureCategory:      Exposure(score),
		Components:            Components(wastePct, in.AnomalyCount, in.ViolationCount, in.TrendPercent),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
