// Package report renders an analysis result for people and machines: JSON
// for pipelines, CSV for spreadsheets, and a styled console summary.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// WriteJSON streams the full report as indented JSON.
func WriteJSON(w io.Writer, result *costmodel.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteDiffJSON streams a baseline comparison as indented JSON. CI gates
// parse this document, so it is always a single complete object.
func WriteDiffJSON(w io.Writer, diff costmodel.DiffResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(diff); err != nil {
		return fmt.Errorf("encode diff: %w", err)
	}
	return nil
}

// WriteCSV writes the optimization candidates sorted by savings, largest
// first, one row per candidate.
func WriteCSV(w io.Writer, result *costmodel.AnalysisResult) error {
	candidates := make([]costmodel.Candidate, len(result.Candidates))
	copy(candidates, result.Candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Savings > candidates[j].Savings
	})

	cw := csv.NewWriter(w)
	header := []string{"Subject", "Service", "Strategy", "Score", "PotentialSavings", "Reasons"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range candidates {
		row := []string{
			c.Subject,
			c.Service,
			c.Strategy,
			fmt.Sprintf("%.1f", c.Score),
			fmt.Sprintf("%.2f", c.Savings),
			joinReasons(c.Reasons),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFindingsCSV writes watcher and governance findings, most severe
// first.
func WriteFindingsCSV(w io.Writer, result *costmodel.AnalysisResult) error {
	findings := make([]costmodel.Finding, len(result.Findings))
	copy(findings, result.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
	})

	cw := csv.NewWriter(w)
	header := []string{"Kind", "Subtype", "Subject", "Severity", "Cost", "Reasons"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, f := range findings {
		row := []string{
			f.Kind,
			f.Subtype,
			f.Subject,
			f.Severity,
			fmt.Sprintf("%.2f", f.Cost),
			joinReasons(f.Reasons),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func severityRank(s string) int {
	switch s {
	case costmodel.SeverityCritical:
		return 3
	case costmodel.SeverityHigh:
		return 2
	case costmodel.SeverityMedium:
		return 1
	default:
		return 0
	}
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
