package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/governance"
	"github.com/opsyield/opsyield/pkg/engine/provider"
)

var anchor = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	r := provider.NewRegistry()
	r.Register("mock", func(ctx context.Context) (provider.Gateway, error) {
		return provider.NewMockGateway(anchor), nil
	})
	r.Register("broken", func(ctx context.Context) (provider.Gateway, error) {
		return nil, errors.New("credentials rejected")
	})
	return r
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return New(Options{
		Registry:   newTestRegistry(t),
		PeriodDays: 7,
	})
}

func TestRunProviderTotalsMatchRecords(t *testing.T) {
	p := newTestPipeline(t)
	result, err := p.RunProvider(context.Background(), "mock")
	if err != nil {
		t.Fatalf("RunProvider: %v", err)
	}

	// 6 days of (10+25+60) plus the spike day (50+25+60).
	want := 6*95.0 + 135.0
	if math.Abs(result.Summary.TotalCost-want) > 1e-6 {
		t.Errorf("total cost = %v, want %v", result.Summary.TotalCost, want)
	}
	if result.Summary.RecordCount != 21 || result.Summary.ResourceCount != 3 {
		t.Errorf("counts = %+v", result.Summary)
	}
	if result.Meta.Provider != "mock" || result.Meta.PeriodDays != 7 {
		t.Errorf("meta = %+v", result.Meta)
	}
}

func TestRunProviderDetectsSpikeDay(t *testing.T) {
	p := newTestPipeline(t)
	result, err := p.RunProvider(context.Background(), "mock")
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, a := range result.Anomalies {
		if a.ID == "EC2:2026-08-28" {
			found = true
			if a.Severity != costmodel.SeverityHigh {
				t.Errorf("spike severity = %s, want high", a.Severity)
			}
		}
	}
	if !found {
		t.Errorf("spike day anomaly missing from %+v", result.Anomalies)
	}

	kinds := map[string]int{}
	for _, f := range result.Findings {
		kinds[f.Kind]++
	}
	if kinds[costmodel.KindCostSpike] == 0 {
		t.Error("cost spike finding missing")
	}
	if kinds[costmodel.KindIdleResource] == 0 {
		t.Error("idle resource finding missing")
	}
	if kinds[costmodel.KindSecurityRisk] == 0 {
		t.Error("security finding missing")
	}
}

func TestRunProviderEnrichesResources(t *testing.T) {
	p := newTestPipeline(t)
	result, err := p.RunProvider(context.Background(), "mock")
	if err != nil {
		t.Fatal(err)
	}

	byID := map[string]costmodel.Resource{}
	for _, r := range result.Resources {
		byID[r.ID] = r
	}

	scratch := byID["i-mock-scratch"]
	if scratch.CPUAvg == nil || *scratch.CPUAvg != 1.2 {
		t.Errorf("scratch cpu = %v", scratch.CPUAvg)
	}
	if scratch.IdleScore < 50 {
		t.Errorf("scratch idle score = %v, want >= 50", scratch.IdleScore)
	}
	if scratch.Cost30d == nil || *scratch.Cost30d != 420 {
		t.Errorf("scratch cost30d = %v, want 420 over 7 days", scratch.Cost30d)
	}

	if len(result.IdleResources) == 0 || result.IdleResources[0] != "i-mock-scratch" {
		t.Errorf("idle list = %v", result.IdleResources)
	}
	if result.Histogram["ec2_instance"] != 2 || result.Histogram["rds_mysql"] != 1 {
		t.Errorf("histogram = %v", result.Histogram)
	}
}

func TestRunProviderWithGovernance(t *testing.T) {
	gov, err := governance.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	err = gov.Compile([]costmodel.Policy{{
		Name:      "DevBudget",
		Condition: `environment == "development" && monthly_cost > 400.0`,
		Action:    "alert",
	}}, true)
	if err != nil {
		t.Fatal(err)
	}

	p := New(Options{
		Registry:   newTestRegistry(t),
		PeriodDays: 7,
		Governance: gov,
	})
	result, err := p.RunProvider(context.Background(), "mock")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %+v, want exactly the dev budget breach", result.Violations)
	}
	v := result.Violations[0]
	if v.Policy != "DevBudget" || v.Scope != "environment=development" || v.Value != 420 {
		t.Errorf("violation = %+v", v)
	}
	if result.Executive.GovernanceViolations != 1 {
		t.Errorf("executive violation count = %d", result.Executive.GovernanceViolations)
	}

	var asFinding bool
	for _, f := range result.Findings {
		if f.Kind == costmodel.KindPolicyViolation && f.Subtype == "DevBudget" {
			asFinding = true
		}
	}
	if !asFinding {
		t.Error("violation not surfaced as a finding")
	}
}

func TestRunProviderUnknownName(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.RunProvider(context.Background(), "azure"); err == nil {
		t.Error("expected an error for an unregistered provider")
	}
}

func TestRunAllIsolatesFailedProviders(t *testing.T) {
	p := newTestPipeline(t)
	merged := p.RunAll(context.Background(), []string{"mock", "broken"})

	if len(merged.FailedProviders) != 1 || merged.FailedProviders[0].Provider != "broken" {
		t.Fatalf("failed providers = %+v", merged.FailedProviders)
	}
	if merged.Summary.TotalCost == 0 {
		t.Error("successful provider data missing from aggregate")
	}

	solo, _ := p.RunProvider(context.Background(), "mock")
	if merged.Executive.RiskScore != solo.Executive.RiskScore {
		t.Errorf("aggregate risk = %v, want the single success's %v",
			merged.Executive.RiskScore, solo.Executive.RiskScore)
	}
	if merged.Meta.Provider != "aggregate" {
		t.Errorf("meta provider = %q", merged.Meta.Provider)
	}
}

func TestRunAllAggregateForecastFields(t *testing.T) {
	p := newTestPipeline(t)
	merged := p.RunAll(context.Background(), []string{"mock", "broken"})

	solo, _ := p.RunProvider(context.Background(), "mock")
	if merged.Executive.ForecastRiskLevel != solo.Executive.ForecastRiskLevel {
		t.Errorf("aggregate forecast level = %q, want the single success's %q",
			merged.Executive.ForecastRiskLevel, solo.Executive.ForecastRiskLevel)
	}
	if got := merged.Executive.ForecastTrendPercent; math.Abs(got-solo.Executive.ForecastTrendPercent) > 0.01 {
		t.Errorf("aggregate forecast trend = %v, want %v", got, solo.Executive.ForecastTrendPercent)
	}

	empty := p.RunAll(context.Background(), []string{"broken"})
	if empty.Executive.ForecastRiskLevel == "" {
		t.Error("zero-success aggregate must still carry a forecast risk level")
	}
}

func TestRunAllZeroSuccessesIsEmptyNotError(t *testing.T) {
	p := newTestPipeline(t)
	merged := p.RunAll(context.Background(), []string{"broken"})

	if merged == nil {
		t.Fatal("aggregate must exist even with zero successes")
	}
	if merged.Summary.TotalCost != 0 || len(merged.Anomalies) != 0 {
		t.Errorf("aggregate not empty: %+v", merged.Summary)
	}
	if len(merged.FailedProviders) != 1 {
		t.Errorf("failed providers = %+v", merged.FailedProviders)
	}
}

func TestStatusChecksAndCaches(t *testing.T) {
	p := newTestPipeline(t)
	statuses := p.Status(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("statuses = %+v", statuses)
	}

	byName := map[string]ProviderStatus{}
	for _, s := range statuses {
		byName[s.Provider] = s
	}
	if !byName["mock"].Healthy {
		t.Errorf("mock unhealthy: %+v", byName["mock"])
	}
	if byName["broken"].Healthy || byName["broken"].Error == "" {
		t.Errorf("broken should carry its error: %+v", byName["broken"])
	}

	again := p.Status(context.Background())
	if !again[0].CheckedAt.Equal(statuses[0].CheckedAt) {
		t.Error("second call re-checked instead of serving the cache")
	}
}
