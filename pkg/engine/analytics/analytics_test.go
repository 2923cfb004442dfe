package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

func day(n int) time.Time {
	return time.Date(2026, 8, n, 0, 0, 0, 0, time.UTC)
}

func record(service string, d int, amount float64) costmodel.NormalizedCost {
	return costmodel.NormalizedCost{
		Provider: "aws",
		Service:  service,
		Amount:   amount,
		Currency: "USD",
		Date:     day(d),
	}
}

func TestSpikeDayFlaggedHigh(t *testing.T) {
	// Six flat days then a 5x spike: day 7 must come out as a high-severity
	// anomaly with the stable service+date identifier.
	var costs []costmodel.NormalizedCost
	for d := 1; d <= 6; d++ {
		costs = append(costs, record("EC2", d, 10))
	}
	costs = append(costs, record("EC2", 7, 50))

	rep := New(DefaultConfig()).Analyze(costs)

	if len(rep.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1 (%+v)", len(rep.Anomalies), rep.Anomalies)
	}
	a := rep.Anomalies[0]
	if a.ID != "EC2:2026-08-07" {
		t.Errorf("anomaly id = %q, want EC2:2026-08-07", a.ID)
	}
	if a.Severity != costmodel.SeverityHigh {
		t.Errorf("severity = %q, want high", a.Severity)
	}
	if a.ZScore <= 3.0 {
		t.Errorf("z = %v, want well above 3", a.ZScore)
	}
	if math.Abs(a.Expected-10) > 1e-9 {
		t.Errorf("expected baseline = %v, want 10", a.Expected)
	}
}

func TestNoAnomalyForDegenerateSeries(t *testing.T) {
	// Two days of history: below the 3-day minimum.
	costs := []costmodel.NormalizedCost{
		record("S3", 1, 10),
		record("S3", 2, 500),
	}
	rep := New(DefaultConfig()).Analyze(costs)
	if len(rep.Anomalies) != 0 {
		t.Errorf("expected no anomalies for short series, got %+v", rep.Anomalies)
	}

	// Flat series: zero stdev.
	costs = nil
	for d := 1; d <= 10; d++ {
		costs = append(costs, record("S3", d, 42))
	}
	rep = New(DefaultConfig()).Analyze(costs)
	if len(rep.Anomalies) != 0 {
		t.Errorf("expected no anomalies for flat series, got %+v", rep.Anomalies)
	}
}

func TestAnomalySeverityTracksZThresholds(t *testing.T) {
	for _, a := range New(DefaultConfig()).Analyze(noisySeries()).Anomalies {
		if a.ZScore <= 2.0 {
			t.Errorf("anomaly %s reported with z %v <= 2.0", a.ID, a.ZScore)
		}
		wantHigh := a.ZScore > 3.0
		gotHigh := a.Severity == costmodel.SeverityHigh
		if wantHigh != gotHigh {
			t.Errorf("anomaly %s severity %q inconsistent with z %v", a.ID, a.Severity, a.ZScore)
		}
	}
}

func noisySeries() []costmodel.NormalizedCost {
	var costs []costmodel.NormalizedCost
	amounts := []float64{10, 12, 9, 11, 10, 13, 40, 10, 11, 24}
	for i, amt := range amounts {
		costs = append(costs, record("Lambda", i+1, amt))
	}
	return costs
}

func TestTrendSplitsAtRecordMidpoint(t *testing.T) {
	costs := []costmodel.NormalizedCost{
		record("EC2", 1, 100),
		record("EC2", 2, 100),
		record("EC2", 3, 200),
		record("EC2", 4, 200),
	}
	rep := New(DefaultConfig()).Analyze(costs)
	if rep.Trend.FirstHalfTotal != 200 || rep.Trend.SecondHalfTotal != 400 {
		t.Fatalf("halves = %v/%v, want 200/400", rep.Trend.FirstHalfTotal, rep.Trend.SecondHalfTotal)
	}
	if math.Abs(rep.Trend.TrendPercent-100) > 1e-9 {
		t.Errorf("trend = %v, want 100", rep.Trend.TrendPercent)
	}
}

func TestDimensionalDefaults(t *testing.T) {
	costs := []costmodel.NormalizedCost{
		{Provider: "aws", Service: "EC2", Amount: 30, Date: day(1), Team: "payments", Environment: "production"},
		{Provider: "aws", Service: "S3", Amount: 70, Date: day(1)},
	}
	rep := New(DefaultConfig()).Analyze(costs)

	if got := rep.Aggregates.ByTeam[UnassignedTeam]; got != 70 {
		t.Errorf("unassigned team total = %v, want 70", got)
	}
	if got := rep.Aggregates.ByEnvironment[UnknownEnvironment]; got != 70 {
		t.Errorf("unknown environment total = %v, want 70", got)
	}
	if got := rep.Aggregates.ByBusinessUnit[UnassignedBusinessUnit]; got != 100 {
		t.Errorf("unassigned BU total = %v, want 100", got)
	}
}

func TestCostDriverRanking(t *testing.T) {
	costs := []costmodel.NormalizedCost{
		record("EC2", 1, 60),
		record("S3", 1, 30),
		record("Lambda", 1, 10),
	}
	rep := New(DefaultConfig()).Analyze(costs)

	if len(rep.Drivers) != 3 || rep.Drivers[0].Service != "EC2" {
		t.Fatalf("drivers = %+v, want EC2 first", rep.Drivers)
	}
	if math.Abs(rep.Drivers[0].SharePct-60) > 1e-9 {
		t.Errorf("EC2 share = %v, want 60", rep.Drivers[0].SharePct)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	costs := noisySeries()
	eng := New(DefaultConfig())

	first, err := json.Marshal(eng.Analyze(costs))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(eng.Analyze(costs))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("two runs over the same input produced different output")
	}
}

func TestAnalyzeDoesNotMutateInput(t *testing.T) {
	costs := []costmodel.NormalizedCost{
		record("B", 2, 2),
		record("A", 1, 1),
	}
	New(DefaultConfig()).Analyze(costs)
	if costs[0].Service != "B" {
		t.Error("input slice was reordered by Analyze")
	}
}
