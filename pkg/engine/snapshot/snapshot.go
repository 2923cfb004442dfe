// Package snapshot persists analysis reports and compares a current run
// against a stored baseline so CI can gate on cost regressions.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/storage"
)

// Manager saves, loads and diffs reports through an archive backend.
type Manager struct {
	archive storage.Archive
	logger  *slog.Logger
}

func NewManager(archive storage.Archive, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{archive: archive, logger: logger}
}

// Save stores the report under the given snapshot name.
func (m *Manager) Save(ctx context.Context, name string, result *costmodel.AnalysisResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := storage.SnapshotKey(name)
	if err := m.archive.Put(ctx, key, data); err != nil {
		return fmt.Errorf("store snapshot %s: %w", name, err)
	}
	m.logger.Info("snapshot saved", "name", name, "key", key, "total_cost", result.Summary.TotalCost)
	return nil
}

// Load reads a named snapshot back into a report.
func (m *Manager) Load(ctx context.Context, name string) (*costmodel.AnalysisResult, error) {
	data, err := m.archive.Get(ctx, storage.SnapshotKey(name))
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", name, err)
	}
	var result costmodel.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return &result, nil
}

// List returns the names of stored snapshots.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return storage.ListSnapshots(ctx, m.archive)
}

// Compare diffs current against baseline. thresholdPct is the cost-increase
// percentage above which the diff counts as a regression; failOnPolicy makes
// any current governance violation a regression on its own.
func Compare(baseline, current *costmodel.AnalysisResult, thresholdPct float64, failOnPolicy bool) costmodel.DiffResult {
	diff := costmodel.DiffResult{}

	baseCost := baseline.Summary.TotalCost
	currCost := current.Summary.TotalCost
	switch {
	case baseCost > 0:
		diff.CostIncreasePct = (currCost - baseCost) / baseCost * 100
	case currCost > 0:
		diff.CostIncreasePct = 100
	}

	diff.RiskScoreChange = current.Executive.RiskScore - baseline.Executive.RiskScore

	known := make(map[string]struct{}, len(baseline.Anomalies))
	for _, a := range baseline.Anomalies {
		known[a.ID] = struct{}{}
	}
	for _, a := range current.Anomalies {
		if _, ok := known[a.ID]; !ok {
			diff.NewAnomalies++
		}
	}

	if extra := len(current.Violations) - len(baseline.Violations); extra > 0 {
		diff.NewViolations = extra
	}

	if diff.CostIncreasePct > thresholdPct {
		diff.IsRegression = true
		diff.Details = append(diff.Details, fmt.Sprintf(
			"total cost increased %.2f%% (%.2f -> %.2f), above the %.2f%% threshold",
			diff.CostIncreasePct, baseCost, currCost, thresholdPct))
	}
	if failOnPolicy && len(current.Violations) > 0 {
		diff.IsRegression = true
		diff.Details = append(diff.Details, fmt.Sprintf(
			"%d governance violation(s) present with fail-on-policy set", len(current.Violations)))
	}
	if diff.NewAnomalies > 0 {
		diff.Details = append(diff.Details, fmt.Sprintf("%d anomaly(ies) not present in baseline", diff.NewAnomalies))
	}
	if diff.RiskScoreChange > 0 {
		diff.Details = append(diff.Details, fmt.Sprintf(
			"risk score rose %.2f (%.2f -> %.2f)",
			diff.RiskScoreChange, baseline.Executive.RiskScore, current.Executive.RiskScore))
	}

	return diff
}

// CompareAgainst loads the named baseline and diffs current against it.
func (m *Manager) CompareAgainst(ctx context.Context, baselineName string, current *costmodel.AnalysisResult, thresholdPct float64, failOnPolicy bool) (costmodel.DiffResult, error) {
	baseline, err := m.Load(ctx, baselineName)
	if err != nil {
		return costmodel.DiffResult{}, err
	}
	diff := Compare(baseline, current, thresholdPct, failOnPolicy)
	diff.BaselineRef = baselineName
	return diff, nil
}
