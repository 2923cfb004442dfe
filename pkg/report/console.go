package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF99"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	dangerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF3366"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF99"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	borderedStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 2)
)

// WriteConsole renders the human summary of a run.
func WriteConsole(w io.Writer, result *costmodel.AnalysisResult) {
	exec := result.Executive

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("opsyield report · %s · %dd window",
		result.Meta.Provider, result.Meta.PeriodDays)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s  $%.2f\n", labelStyle.Render("Total spend        "), exec.TotalSpend))
	b.WriteString(fmt.Sprintf("%s  $%.2f (%.1f%% of spend)\n",
		labelStyle.Render("Savings identified "), exec.OptimizationPotential, exec.WastePercentage))
	b.WriteString(fmt.Sprintf("%s  %s\n", labelStyle.Render("Risk score         "),
		renderRisk(exec.RiskScore, exec.ExposureCategory)))
	b.WriteString(fmt.Sprintf("%s  %d anomalies, %d violations, forecast risk %s\n",
		labelStyle.Render("Signals            "),
		exec.AnomalyCount, exec.GovernanceViolations, exec.ForecastRiskLevel))

	if len(result.Drivers) > 0 {
		b.WriteString(sectionStyle.Render("Top cost drivers"))
		b.WriteString("\n")
		for i, d := range result.Drivers {
			if i == 5 {
				break
			}
			b.WriteString(fmt.Sprintf("  %-28s $%10.2f  %5.1f%%\n", d.Service, d.Amount, d.SharePct))
		}
	}

	if n := len(result.Findings); n > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Findings (%d)", n)))
		b.WriteString("\n")
		for i, f := range result.Findings {
			if i == 10 {
				b.WriteString(labelStyle.Render(fmt.Sprintf("  ... and %d more\n", n-10)))
				break
			}
			b.WriteString(fmt.Sprintf("  %s %s %s\n", renderSeverity(f.Severity), f.Kind, f.Subject))
		}
	}

	for _, fp := range result.FailedProviders {
		b.WriteString(dangerStyle.Render(fmt.Sprintf("\nprovider %s failed: %s", fp.Provider, fp.Error)))
		b.WriteString("\n")
	}

	fmt.Fprintln(w, borderedStyle.Render(b.String()))
}

// WriteDiffConsole renders a snapshot comparison.
func WriteDiffConsole(w io.Writer, diff costmodel.DiffResult) {
	var b strings.Builder
	if diff.IsRegression {
		b.WriteString(dangerStyle.Render("REGRESSION against " + diff.BaselineRef))
	} else {
		b.WriteString(okStyle.Render("no regression against " + diff.BaselineRef))
	}
	b.WriteString(fmt.Sprintf("\n%s  %+.2f%%\n", labelStyle.Render("Cost change     "), diff.CostIncreasePct))
	b.WriteString(fmt.Sprintf("%s  %+.2f\n", labelStyle.Render("Risk change     "), diff.RiskScoreChange))
	b.WriteString(fmt.Sprintf("%s  %d new anomalies, %d new violations\n",
		labelStyle.Render("New signals     "), diff.NewAnomalies, diff.NewViolations))
	for _, d := range diff.Details {
		b.WriteString(warnStyle.Render("  - " + d))
		b.WriteString("\n")
	}
	fmt.Fprintln(w, borderedStyle.Render(b.String()))
}

func renderRisk(score float64, exposure string) string {
	text := fmt.Sprintf("%.2f / 100 (%s)", score, exposure)
	switch exposure {
	case "CRITICAL", "HIGH":
		return dangerStyle.Render(text)
	case "MODERATE":
		return warnStyle.Render(text)
	default:
		return okStyle.Render(text)
	}
}

func renderSeverity(severity string) string {
	tag := "[" + strings.ToUpper(severity) + "]"
	switch severity {
	case costmodel.SeverityCritical, costmodel.SeverityHigh:
		return dangerStyle.Render(tag)
	case costmodel.SeverityMedium:
		return warnStyle.Render(tag)
	default:
		return labelStyle.Render(tag)
	}
}
