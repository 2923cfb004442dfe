package watch

import (
	"strings"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// SecurityWatcher flags exposure patterns visible from inventory metadata:
// database engines with a public address and legacy instance generations.
type SecurityWatcher struct{}

func (SecurityWatcher) Name() string { return "security" }

func (SecurityWatcher) Watch(resources []costmodel.Resource, _ []costmodel.NormalizedCost) ([]costmodel.Finding, error) {
	var findings []costmodel.Finding
	for _, r := range resources {
		if isDatabaseType(r.Type) && r.ExternalIP != "" {
			findings = append(findings, costmodel.Finding{
				Kind:     costmodel.KindSecurityRisk,
				Subtype:  "public_database",
				Subject:  r.ID,
				Severity: costmodel.SeverityCritical,
				Reasons:  []string{"database has an external IP exposed"},
			})
		}
		if strings.Contains(r.Class, "t1.") {
			findings = append(findings, costmodel.Finding{
				Kind:     costmodel.KindSecurityRisk,
				Subtype:  "legacy_instance",
				Subject:  r.ID,
				Severity: costmodel.SeverityLow,
				Reasons:  []string{"previous-generation instance class " + r.Class},
			})
		}
	}
	return findings, nil
}

func isDatabaseType(resourceType string) bool {
	t := strings.ToLower(resourceType)
	return strings.Contains(t, "sql") || strings.Contains(t, "rds")
}
