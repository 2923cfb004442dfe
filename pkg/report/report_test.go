package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

func fixedResult() *costmodel.AnalysisResult {
	return &costmodel.AnalysisResult{
		Meta: costmodel.Meta{
			Provider:    "mock",
			PeriodDays:  7,
			GeneratedAt: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		},
		Summary: costmodel.Summary{
			TotalCost:     705,
			Currency:      "USD",
			RecordCount:   21,
			ResourceCount: 3,
		},
	}
}

func TestWriteJSONGolden(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, fixedResult()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "report", buf.Bytes())
}

func TestWriteCSVSortsBySavings(t *testing.T) {
	result := fixedResult()
	result.Candidates = []costmodel.Candidate{
		{Subject: "small", Strategy: "baseline", Savings: 10},
		{Subject: "big", Strategy: "baseline", Savings: 400},
		{Subject: "mid", Strategy: "baseline", Savings: 60.5, Reasons: []string{"idle", "dev spend"}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, result); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("csv lines = %d, want header + 3 rows", len(lines))
	}
	if !strings.HasPrefix(lines[1], "big,") || !strings.HasPrefix(lines[2], "mid,") || !strings.HasPrefix(lines[3], "small,") {
		t.Errorf("rows not sorted by savings:\n%s", buf.String())
	}
	if !strings.Contains(lines[2], "idle; dev spend") {
		t.Errorf("reasons not joined: %s", lines[2])
	}
	// Input order untouched.
	if result.Candidates[0].Subject != "small" {
		t.Error("WriteCSV mutated its input")
	}
}

func TestWriteFindingsCSVSortsBySeverity(t *testing.T) {
	result := fixedResult()
	result.Findings = []costmodel.Finding{
		{Kind: costmodel.KindIdleResource, Subject: "a", Severity: costmodel.SeverityLow},
		{Kind: costmodel.KindSecurityRisk, Subject: "b", Severity: costmodel.SeverityCritical},
		{Kind: costmodel.KindCostSpike, Subject: "c", Severity: costmodel.SeverityHigh},
	}

	var buf bytes.Buffer
	if err := WriteFindingsCSV(&buf, result); err != nil {
		t.Fatalf("WriteFindingsCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.Contains(lines[1], "critical") || !strings.Contains(lines[2], "high") || !strings.Contains(lines[3], "low") {
		t.Errorf("rows not sorted by severity:\n%s", buf.String())
	}
}

func TestWriteConsoleSmoke(t *testing.T) {
	result := fixedResult()
	result.Executive.TotalSpend = 705
	result.Drivers = []costmodel.CostDriver{{Service: "EC2", Amount: 480, SharePct: 68.1}}
	result.FailedProviders = []costmodel.ProviderFailure{{Provider: "broken", Error: "credentials rejected"}}

	var buf bytes.Buffer
	WriteConsole(&buf, result)

	out := buf.String()
	for _, want := range []string{"705.00", "EC2", "credentials rejected"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q", want)
		}
	}
}

func TestWriteDiffJSONRoundTrip(t *testing.T) {
	in := costmodel.DiffResult{
		BaselineRef:     "baseline",
		IsRegression:    true,
		CostIncreasePct: 30,
		RiskScoreChange: -2.5,
		NewAnomalies:    1,
		Details:         []string{"total cost increased 30.00%"},
	}

	var buf bytes.Buffer
	if err := WriteDiffJSON(&buf, in); err != nil {
		t.Fatalf("WriteDiffJSON: %v", err)
	}

	var out costmodel.DiffResult
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not a valid JSON document: %v", err)
	}
	if out.BaselineRef != in.BaselineRef || !out.IsRegression ||
		out.CostIncreasePct != in.CostIncreasePct || out.RiskScoreChange != in.RiskScoreChange {
		t.Errorf("round trip mismatch: got %+v", out)
	}
}

func TestWriteDiffConsoleSmoke(t *testing.T) {
	var buf bytes.Buffer
	WriteDiffConsole(&buf, costmodel.DiffResult{
		BaselineRef:     "baseline",
		IsRegression:    true,
		CostIncreasePct: 30,
		Details:         []string{"total cost increased 30.00%"},
	})

	out := buf.String()
	if !strings.Contains(out, "REGRESSION") || !strings.Contains(out, "30.00") {
		t.Errorf("diff output incomplete:\n%s", out)
	}
}
