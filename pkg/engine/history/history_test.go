package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLedgerAppendAndWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	l := NewLedger(NewFileBackend(path))

	for i := 1; i <= 5; i++ {
		err := l.Record(Entry{
			Timestamp: int64(i * 3600),
			Provider:  "aws",
			TotalCost: float64(i * 100),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	window, err := l.Window(3)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("window = %d entries, want 3", len(window))
	}
	if window[0].TotalCost != 300 || window[2].TotalCost != 500 {
		t.Errorf("window order wrong: %+v", window)
	}
}

func TestLedgerMissingFileIsEmpty(t *testing.T) {
	l := NewLedger(NewFileBackend(filepath.Join(t.TempDir(), "absent.jsonl")))
	window, err := l.Window(10)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 0 {
		t.Errorf("window = %v, want empty", window)
	}
}

func TestLedgerSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	content := `{"timestamp":3600,"total_cost":100}
not json at all
{"timestamp":7200,"total_cost":200}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	window, err := NewLedger(NewFileBackend(path)).Window(10)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window = %d entries, want 2 valid ones", len(window))
	}
}

func TestTrendVelocityAndProjection(t *testing.T) {
	entries := []Entry{
		{Timestamp: 0, TotalCost: 1000},
		{Timestamp: 3600, TotalCost: 1010},
	}
	m := Trend(entries, 0)
	if m.Velocity != 10 {
		t.Errorf("velocity = %v, want 10/hr", m.Velocity)
	}
	if m.Projected24h != 1250 {
		t.Errorf("projected = %v, want 1250", m.Projected24h)
	}
	if m.BudgetTracking {
		t.Error("budget tracking enabled with zero budget")
	}
}

func TestTrendAcceleration(t *testing.T) {
	entries := []Entry{
		{Timestamp: 0, TotalCost: 1000},
		{Timestamp: 3600, TotalCost: 1010},
		{Timestamp: 7200, TotalCost: 1030},
	}
	m := Trend(entries, 0)
	if m.Velocity != 20 {
		t.Errorf("velocity = %v, want 20/hr", m.Velocity)
	}
	if m.Acceleration != 10 {
		t.Errorf("acceleration = %v, want 10/hr2", m.Acceleration)
	}
}

func TestTrendBudgetExhaustionAlert(t *testing.T) {
	entries := []Entry{
		{Timestamp: 0, TotalCost: 900},
		{Timestamp: 3600, TotalCost: 950},
	}
	m := Trend(entries, 1000)
	if !m.BudgetTracking {
		t.Fatal("budget tracking not enabled")
	}
	if m.TimeToBudget != time.Hour {
		t.Errorf("time to budget = %v, want 1h", m.TimeToBudget)
	}
	if len(m.Alerts) == 0 {
		t.Error("expected an exhaustion alert inside 24h")
	}
}

func TestTrendDegenerateWindows(t *testing.T) {
	if m := Trend(nil, 100); m.CurrentCost != 0 || m.Velocity != 0 {
		t.Errorf("empty window not neutral: %+v", m)
	}
	if m := Trend([]Entry{{TotalCost: 50}}, 100); m.CurrentCost != 50 || m.Velocity != 0 {
		t.Errorf("single entry not neutral: %+v", m)
	}
	same := []Entry{{Timestamp: 100, TotalCost: 10}, {Timestamp: 100, TotalCost: 20}}
	if m := Trend(same, 0); m.Velocity != 0 {
		t.Errorf("identical timestamps produced velocity %v", m.Velocity)
	}
}
