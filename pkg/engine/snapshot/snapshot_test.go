package snapshot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/storage"
)

func report(totalCost, riskScore float64) *costmodel.AnalysisResult {
	return &costmodel.AnalysisResult{
		Meta: costmodel.Meta{
			Provider:    "aws",
			PeriodDays:  30,
			GeneratedAt: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		},
		Summary:   costmodel.Summary{TotalCost: totalCost, RecordCount: 1},
		Executive: costmodel.ExecutiveSummary{RiskScore: riskScore},
	}
}

func TestSelfDiffIsNeutral(t *testing.T) {
	r := report(1000, 20)
	r.Anomalies = []costmodel.Anomaly{{ID: "EC2:2026-08-07", Service: "EC2"}}

	diff := Compare(r, r, 0, false)
	if diff.IsRegression {
		t.Error("self diff flagged a regression")
	}
	if diff.CostIncreasePct != 0 || diff.RiskScoreChange != 0 || diff.NewAnomalies != 0 || diff.NewViolations != 0 {
		t.Errorf("self diff not neutral: %+v", diff)
	}
}

func TestCostIncreaseAboveThresholdIsRegression(t *testing.T) {
	diff := Compare(report(1000, 10), report(1300, 10), 20, false)
	if !diff.IsRegression {
		t.Fatal("30% increase over a 20% threshold must be a regression")
	}
	if diff.CostIncreasePct != 30 {
		t.Errorf("cost increase = %v, want 30", diff.CostIncreasePct)
	}
	if len(diff.Details) == 0 || !strings.Contains(diff.Details[0], "threshold") {
		t.Errorf("details missing threshold explanation: %v", diff.Details)
	}
}

func TestCostIncreaseAtThresholdIsNotRegression(t *testing.T) {
	diff := Compare(report(1000, 10), report(1200, 10), 20, false)
	if diff.IsRegression {
		t.Error("increase equal to the threshold must not be a regression")
	}
}

func TestZeroBaselineCost(t *testing.T) {
	if diff := Compare(report(0, 0), report(500, 0), 20, false); diff.CostIncreasePct != 100 {
		t.Errorf("zero baseline, nonzero current = %v, want 100", diff.CostIncreasePct)
	}
	if diff := Compare(report(0, 0), report(0, 0), 20, false); diff.CostIncreasePct != 0 {
		t.Errorf("zero baseline, zero current = %v, want 0", diff.CostIncreasePct)
	}
}

func TestNewAnomaliesBySetDifference(t *testing.T) {
	base := report(100, 0)
	base.Anomalies = []costmodel.Anomaly{{ID: "EC2:2026-08-01"}, {ID: "S3:2026-08-02"}}

	curr := report(100, 0)
	curr.Anomalies = []costmodel.Anomaly{{ID: "EC2:2026-08-01"}, {ID: "RDS:2026-08-03"}}

	diff := Compare(base, curr, 50, false)
	if diff.NewAnomalies != 1 {
		t.Errorf("new anomalies = %d, want 1 (only RDS:2026-08-03 is new)", diff.NewAnomalies)
	}
	// A resolved baseline anomaly never counts as a regression signal.
	if diff.IsRegression {
		t.Error("new anomalies alone must not flag a regression")
	}
}

func TestFailOnPolicyGatesOnCurrentViolations(t *testing.T) {
	curr := report(100, 0)
	curr.Violations = []costmodel.Violation{{Policy: "NonProdBudget", Action: "alert"}}

	if diff := Compare(report(100, 0), curr, 50, false); diff.IsRegression {
		t.Error("violations without fail-on-policy must not gate")
	}
	diff := Compare(report(100, 0), curr, 50, true)
	if !diff.IsRegression {
		t.Error("violations with fail-on-policy must gate")
	}
	if diff.NewViolations != 1 {
		t.Errorf("new violations = %d, want 1", diff.NewViolations)
	}
}

func TestViolationCountNeverNegative(t *testing.T) {
	base := report(100, 0)
	base.Violations = []costmodel.Violation{{Policy: "a"}, {Policy: "b"}}
	diff := Compare(base, report(100, 0), 50, false)
	if diff.NewViolations != 0 {
		t.Errorf("new violations = %d, want 0 when current has fewer", diff.NewViolations)
	}
}

func TestManagerRoundTripAndCompare(t *testing.T) {
	m := NewManager(storage.NewLocalArchive(t.TempDir()), nil)
	ctx := context.Background()

	base := report(1000, 10)
	if err := m.Save(ctx, "baseline", base); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := m.Load(ctx, "baseline")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Summary.TotalCost != 1000 {
		t.Errorf("loaded total cost = %v, want 1000", loaded.Summary.TotalCost)
	}

	diff, err := m.CompareAgainst(ctx, "baseline", report(1300, 15), 20, false)
	if err != nil {
		t.Fatalf("CompareAgainst: %v", err)
	}
	if !diff.IsRegression || diff.BaselineRef != "baseline" {
		t.Errorf("diff = %+v, want regression against named baseline", diff)
	}
	if diff.RiskScoreChange != 5 {
		t.Errorf("risk score change = %v, want 5", diff.RiskScoreChange)
	}

	names, err := m.List(ctx)
	if err != nil || len(names) != 1 {
		t.Errorf("List = %v, %v", names, err)
	}
}

func TestCompareAgainstMissingBaseline(t *testing.T) {
	m := NewManager(storage.NewLocalArchive(t.TempDir()), nil)
	if _, err := m.CompareAgainst(context.Background(), "absent", report(1, 1), 20, false); err == nil {
		t.Error("expected an error for a missing baseline")
	}
}
