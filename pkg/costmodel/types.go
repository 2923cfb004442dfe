// Package costmodel defines the provider-agnostic domain types shared by the
// analysis engines: normalized billing records, discovered resources, typed
// findings, and the assembled report.
package costmodel

import "time"

// DateLayout is the day-granularity format used for cost timestamps and
// anomaly identifiers.
const DateLayout = "2006-01-02"

// NormalizedCost is one billed-cost observation. Provider adapters produce
// these; every analysis component consumes them read-only.
type NormalizedCost struct {
	Provider     string            `json:"provider"`
	Service      string            `json:"service"`
	Region       string            `json:"region,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Amount       float64           `json:"amount"`
	Currency     string            `json:"currency"`
	Date         time.Time         `json:"date"`
	Team         string            `json:"team,omitempty"`
	BusinessUnit string            `json:"business_unit,omitempty"`
	Environment  string            `json:"environment,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// Day returns the day-granularity key for the record.
func (c NormalizedCost) Day() string {
	return c.Date.Format(DateLayout)
}

// Lifecycle states for discovered resources.
const (
	StateRunning    = "running"
	StateStopped    = "stopped"
	StateTerminated = "terminated"
	StateUnknown    = "unknown"
)

// Resource is one discovered infrastructure unit. The intelligence fields
// (RiskScore, IdleScore, WasteReasons, Suggestions) are filled by enrichment
// stages during a single pipeline run and are read-only afterwards.
type Resource struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Provider   string    `json:"provider"`
	Region     string    `json:"region,omitempty"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	LastSeen   time.Time `json:"last_seen,omitempty"`
	Class      string    `json:"class,omitempty"`
	ExternalIP string    `json:"external_ip,omitempty"`

	CPUAvg *float64 `json:"cpu_avg,omitempty"`
	MemAvg *float64 `json:"mem_avg,omitempty"`
	IOAvg  *float64 `json:"io_avg,omitempty"`

	Cost30d  *float64 `json:"cost_30d,omitempty"`
	Currency string   `json:"currency,omitempty"`

	RiskScore    float64  `json:"risk_score"`
	IdleScore    float64  `json:"idle_score"`
	WasteReasons []string `json:"waste_reasons,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	DependsOn    []string `json:"depends_on,omitempty"`

	Tags map[string]string `json:"tags,omitempty"`
}

// Utilization is a best-effort set of averaged usage metrics for one
// resource. Nil fields mean the provider had no data.
type Utilization struct {
	CPUAvg *float64 `json:"cpu_avg,omitempty"`
	MemAvg *float64 `json:"mem_avg,omitempty"`
	IOAvg  *float64 `json:"io_avg,omitempty"`
}

// Finding kinds.
const (
	KindIdleResource    = "idle_resource"
	KindCostSpike       = "cost_spike"
	KindSecurityRisk    = "security_risk"
	KindPolicyViolation = "policy_violation"
)

// Severity levels, ordered.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Finding is a typed, severity-tagged watcher or governance output.
// Numeric evidence fields are populated per kind; unused ones stay zero.
type Finding struct {
	Kind         string   `json:"kind"`
	Subtype      string   `json:"subtype,omitempty"`
	Subject      string   `json:"subject"`
	Severity     string   `json:"severity"`
	Reasons      []string `json:"reasons,omitempty"`
	Score        float64  `json:"score,omitempty"`
	Cost         float64  `json:"cost,omitempty"`
	ZScore       float64  `json:"z_score,omitempty"`
	DeviationPct float64  `json:"deviation_pct,omitempty"`
}

// Anomaly is one flagged (service, day) cost observation. ID is stable
// across runs (service+date) so snapshots can be diffed by set difference.
type Anomaly struct {
	ID           string  `json:"id"`
	Service      string  `json:"service"`
	Date         string  `json:"date"`
	Cost         float64 `json:"cost"`
	Expected     float64 `json:"expected"`
	ZScore       float64 `json:"z_score"`
	DeviationPct float64 `json:"deviation_pct"`
	Severity     string  `json:"severity"`
}

// TrendStats summarizes spend movement between the two chronological halves
// of the analysis period.
type TrendStats struct {
	FirstHalfTotal  float64 `json:"first_half_total"`
	SecondHalfTotal float64 `json:"second_half_total"`
	TrendPercent    float64 `json:"trend_percent"`
}

// DailyCost is one point of the daily spend series.
type DailyCost struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Forecast is a moving-average spend projection.
type Forecast struct {
	HorizonDays  int     `json:"horizon_days"`
	DailyAverage float64 `json:"daily_average"`
	Projected    float64 `json:"projected"`
	LowerBound   float64 `json:"lower_bound"`
	UpperBound   float64 `json:"upper_bound"`
}

// Aggregates holds cost totals per reporting dimension.
type Aggregates struct {
	ByService      map[string]float64 `json:"by_service"`
	ByTeam         map[string]float64 `json:"by_team"`
	ByBusinessUnit map[string]float64 `json:"by_business_unit"`
	ByEnvironment  map[string]float64 `json:"by_environment"`
}

// CostDriver ranks a service by its share of total spend.
type CostDriver struct {
	Service  string  `json:"service"`
	Amount   float64 `json:"amount"`
	SharePct float64 `json:"share_pct"`
}

// Violation records one triggered governance policy.
type Violation struct {
	Policy    string    `json:"policy"`
	Scope     string    `json:"scope"`
	Value     float64   `json:"actual_value"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Candidate is one optimization opportunity produced by a strategy.
type Candidate struct {
	Subject  string   `json:"subject"`
	Service  string   `json:"service,omitempty"`
	Strategy string   `json:"strategy"`
	Score    float64  `json:"score"`
	Savings  float64  `json:"potential_savings"`
	Reasons  []string `json:"reasons,omitempty"`
}

// RiskComponents is the weighted breakdown behind a composite risk score.
type RiskComponents struct {
	Waste     float64 `json:"waste"`
	Anomaly   float64 `json:"anomaly"`
	Violation float64 `json:"violation"`
	Trend     float64 `json:"trend"`
}

// ExecutiveSummary packages the headline numbers of a run.
type ExecutiveSummary struct {
	TotalSpend            float64        `json:"total_spend"`
	WastePercentage       float64        `json:"waste_percentage"`
	OptimizationPotential float64        `json:"optimization_potential"`
	AnomalyCount          int            `json:"anomaly_count"`
	GovernanceViolations  int            `json:"governance_violations"`
	ForecastRiskLevel     string         `json:"forecast_risk_level"`
	ForecastTrendPercent  float64        `json:"forecast_trend_percent"`
	UnallocatedCostPct    float64        `json:"unallocated_cost_percentage"`
	RiskScore             float64        `json:"risk_score"`
	ExposureCategory      string         `json:"exposure_category"`
	Components            RiskComponents `json:"components"`
}

// Meta identifies one analysis run.
type Meta struct {
	Provider    string    `json:"provider"`
	PeriodDays  int       `json:"period_days"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Summary holds run totals. TotalCost equals the sum of the run's
// NormalizedCost amounts (within 1e-6).
type Summary struct {
	TotalCost     float64 `json:"total_cost"`
	Currency      string  `json:"currency,omitempty"`
	RecordCount   int     `json:"record_count"`
	ResourceCount int     `json:"resource_count"`
}

// ProviderFailure marks a provider excluded from an aggregate run.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// AnalysisResult is the per-provider (or aggregate) report. It is
// constructed once per pipeline run and immutable after assembly.
type AnalysisResult struct {
	Meta       Meta             `json:"meta"`
	Summary    Summary          `json:"summary"`
	Executive  ExecutiveSummary `json:"executive_summary"`
	Trend      TrendStats       `json:"trends"`
	Daily      []DailyCost      `json:"daily_costs"`
	Anomalies  []Anomaly        `json:"anomalies"`
	Forecast   Forecast         `json:"forecast"`
	Violations []Violation      `json:"governance_violations"`
	Candidates []Candidate      `json:"optimization_candidates"`
	Findings   []Finding        `json:"findings"`
	Aggregates Aggregates       `json:"aggregates"`
	Drivers    []CostDriver     `json:"cost_drivers"`
	Histogram  map[string]int   `json:"resource_type_histogram,omitempty"`
	Resources  []Resource       `json:"resources,omitempty"`

	HighCostResources []string `json:"high_cost_resources,omitempty"`
	IdleResources     []string `json:"idle_resources,omitempty"`
	WasteResources    []string `json:"waste_resources,omitempty"`

	FailedProviders []ProviderFailure `json:"failed_providers,omitempty"`
}

// DiffResult is the outcome of comparing two reports for CI gating.
type DiffResult struct {
	BaselineRef     string   `json:"baseline"`
	IsRegression    bool     `json:"is_regression"`
	CostIncreasePct float64  `json:"cost_increase_pct"`
	RiskScoreChange float64  `json:"risk_score_change"`
	NewAnomalies    int      `json:"new_anomalies"`
	NewViolations   int      `json:"new_violations"`
	Details         []string `json:"details,omitempty"`
}

// Policy is one declarative governance rule.
type Policy struct {
	Name      string `json:"name" yaml:"name"`
	Condition string `json:"condition" yaml:"condition"`
	Action    string `json:"action" yaml:"action"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
