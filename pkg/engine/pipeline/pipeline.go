// Package pipeline orchestrates a full analysis run: fetch provider data,
// enrich resources, run the optimization and analytics engines, evaluate
// governance, score risk, and assemble the report. Multi-provider runs fan
// out on the task group and merge with per-provider failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsyield/opsyield/pkg/cache"
	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/analytics"
	"github.com/opsyield/opsyield/pkg/engine/governance"
	"github.com/opsyield/opsyield/pkg/engine/optimize"
	"github.com/opsyield/opsyield/pkg/engine/provider"
	"github.com/opsyield/opsyield/pkg/engine/risk"
	"github.com/opsyield/opsyield/pkg/engine/watch"
)

// Thresholds for the assembled resource shortlists.
const (
	highCostThreshold = 100.0
	idleListThreshold = 50.0
)

// Options configures a pipeline.
type Options struct {
	Registry    *provider.Registry
	Analytics   analytics.Config
	Idle        watch.IdleConfig
	Spike       watch.SpikeConfig
	Governance  *governance.Engine // nil disables policy evaluation
	Logger      *slog.Logger
	PeriodDays  int
	Concurrency int

	StatusTimeout  time.Duration
	StatusCacheTTL time.Duration
}

// Pipeline runs analyses against registered providers.
type Pipeline struct {
	registry   *provider.Registry
	analytics  *analytics.Engine
	optimizer  *optimize.Engine
	watchers   *watch.Runner
	governance *governance.Engine
	idleCfg    watch.IdleConfig

	logger      *slog.Logger
	tracer      trace.Tracer
	periodDays  int
	concurrency int

	statusTimeout time.Duration
	statusCache   *cache.TTL[[]ProviderStatus]

	runs          metric.Int64Counter
	failures      metric.Int64Counter
	stageDuration metric.Float64Histogram

	now func() time.Time
}

// New builds a pipeline from options, applying defaults for zero values.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PeriodDays <= 0 {
		opts.PeriodDays = 30
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = 20 * time.Second
	}
	if opts.StatusCacheTTL <= 0 {
		opts.StatusCacheTTL = 5 * time.Minute
	}
	if opts.Idle == (watch.IdleConfig{}) {
		opts.Idle = watch.DefaultIdleConfig()
	}
	if opts.Spike == (watch.SpikeConfig{}) {
		opts.Spike = watch.DefaultSpikeConfig()
	}

	runner := watch.NewEmptyRunner(opts.Logger)
	runner.Register(watch.NewIdleWatcher(opts.Idle))
	runner.Register(watch.NewSpikeWatcher(opts.Spike))
	runner.Register(watch.SecurityWatcher{})

	meter := otel.Meter("opsyield/pipeline")
	runs, _ := meter.Int64Counter("opsyield.pipeline.runs")
	failures, _ := meter.Int64Counter("opsyield.pipeline.provider_failures")
	stageDuration, _ := meter.Float64Histogram("opsyield.pipeline.stage.duration",
		metric.WithUnit("s"))

	return &Pipeline{
		registry:      opts.Registry,
		analytics:     analytics.New(opts.Analytics),
		optimizer:     optimize.New(opts.Logger),
		watchers:      runner,
		governance:    opts.Governance,
		idleCfg:       opts.Idle,
		logger:        opts.Logger,
		tracer:        otel.Tracer("opsyield/pipeline"),
		periodDays:    opts.PeriodDays,
		concurrency:   opts.Concurrency,
		statusTimeout: opts.StatusTimeout,
		statusCache:   cache.New[[]ProviderStatus](opts.StatusCacheTTL),
		runs:          runs,
		failures:      failures,
		stageDuration: stageDuration,
		now:           time.Now,
	}
}

// RunProvider executes the staged analysis for one provider.
func (p *Pipeline) RunProvider(ctx context.Context, name string) (*costmodel.AnalysisResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("provider", name)))
	defer span.End()
	p.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", name)))

	gw, err := p.registry.Open(ctx, name)
	if err != nil {
		return nil, p.fail(ctx, span, name, err)
	}

	costs, resources, err := p.fetch(ctx, gw)
	if err != nil {
		return nil, p.fail(ctx, span, name, err)
	}

	p.enrich(ctx, gw, resources, costs)
	candidates := p.optimize(ctx, name, costs)
	report, findings := p.analyze(ctx, name, costs, resources)
	violations := p.govern(ctx, name, costs)
	findings = append(findings, violationFindings(violations)...)

	result := p.assemble(name, costs, resources, candidates, report, violations, findings)
	span.SetAttributes(
		attribute.Int("records", len(costs)),
		attribute.Int("resources", len(resources)),
		attribute.Int("findings", len(findings)),
	)
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, name string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", name)))
	p.logger.Error("provider run failed", "provider", name, "error", err)
	return fmt.Errorf("provider %s: %w", name, err)
}

func (p *Pipeline) fetch(ctx context.Context, gw provider.Gateway) ([]costmodel.NormalizedCost, []costmodel.Resource, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetch")
	defer p.endStage(ctx, span, "fetch", time.Now())

	costs, err := gw.GetCosts(ctx, p.periodDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("get costs: %w", err)
	}
	resources, err := gw.GetInfrastructure(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("get infrastructure: %w", err)
	}
	return costs, resources, nil
}

// enrich is best-effort: utilization or billing gaps degrade the resource
// intelligence fields, never the run.
func (p *Pipeline) enrich(ctx context.Context, gw provider.Gateway, resources []costmodel.Resource, costs []costmodel.NormalizedCost) {
	ctx, span := p.tracer.Start(ctx, "pipeline.enrich")
	defer p.endStage(ctx, span, "enrich", time.Now())

	ids := make([]string, len(resources))
	for i, r := range resources {
		ids[i] = r.ID
	}

	util, err := gw.GetUtilizationMetrics(ctx, ids)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("utilization enrichment skipped", "provider", gw.Name(), "error", err)
	}

	var resourceCosts map[string]float64
	if rc, ok := gw.(provider.ResourceCoster); ok {
		resourceCosts, err = rc.GetResourceCosts(ctx, p.periodDays)
		if err != nil {
			span.RecordError(err)
			p.logger.Warn("resource cost mapping skipped", "provider", gw.Name(), "error", err)
		}
	}

	currency := ""
	for _, c := range costs {
		if c.Currency != "" {
			currency = c.Currency
			break
		}
	}

	for i := range resources {
		r := &resources[i]
		if u, ok := util[r.ID]; ok {
			r.CPUAvg, r.MemAvg, r.IOAvg = u.CPUAvg, u.MemAvg, u.IOAvg
		}
		if amount, ok := resourceCosts[r.ID]; ok {
			v := amount
			r.Cost30d = &v
			if r.Currency == "" {
				r.Currency = currency
			}
		}

		score, reasons := watch.IdleScore(p.idleCfg, *r)
		r.IdleScore = score
		r.WasteReasons = reasons
		r.RiskScore = costmodel.ClampScore(score)
		if score >= idleListThreshold {
			r.Suggestions = append(r.Suggestions, "stop or rightsize this resource")
		}
	}
}

func (p *Pipeline) optimize(ctx context.Context, name string, costs []costmodel.NormalizedCost) []costmodel.Candidate {
	ctx, span := p.tracer.Start(ctx, "pipeline.optimize",
		trace.WithAttributes(attribute.String("provider", name)))
	defer p.endStage(ctx, span, "optimize", time.Now())

	candidates := p.optimizer.Run(costs)
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates
}

func (p *Pipeline) analyze(ctx context.Context, name string, costs []costmodel.NormalizedCost, resources []costmodel.Resource) (analytics.Report, []costmodel.Finding) {
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze")
	defer p.endStage(ctx, span, "analyze", time.Now())

	report := p.analytics.Analyze(costs)
	findings := p.watchers.Run(ctx, resources, costs)
	span.SetAttributes(
		attribute.Int("anomalies", len(report.Anomalies)),
		attribute.Int("findings", len(findings)),
		attribute.String("provider", name),
	)
	return report, findings
}

func (p *Pipeline) govern(ctx context.Context, name string, costs []costmodel.NormalizedCost) []costmodel.Violation {
	if p.governance == nil || p.governance.PolicyCount() == 0 {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.govern",
		trace.WithAttributes(attribute.String("provider", name)))
	defer p.endStage(ctx, span, "govern", time.Now())

	violations := p.governance.Evaluate(costs)
	span.SetAttributes(attribute.Int("violations", len(violations)))
	return violations
}

func violationFindings(violations []costmodel.Violation) []costmodel.Finding {
	findings := make([]costmodel.Finding, 0, len(violations))
	for _, v := range violations {
		findings = append(findings, costmodel.Finding{
			Kind:     costmodel.KindPolicyViolation,
			Subtype:  v.Policy,
			Subject:  v.Scope,
			Severity: costmodel.SeverityHigh,
			Cost:     v.Value,
			Reasons:  []string{fmt.Sprintf("policy %s triggered (%s)", v.Policy, v.Action)},
		})
	}
	return findings
}

func (p *Pipeline) assemble(name string, costs []costmodel.NormalizedCost, resources []costmodel.Resource, candidates []costmodel.Candidate, report analytics.Report, violations []costmodel.Violation, findings []costmodel.Finding) *costmodel.AnalysisResult {
	var total float64
	currency := ""
	for _, c := range costs {
		total += c.Amount
		if currency == "" {
			currency = c.Currency
		}
	}

	executive := risk.GenerateExecutiveSummary(risk.SummaryInput{
		TotalCost:             total,
		OptimizationPotential: optimize.TotalSavings(candidates),
		AnomalyCount:          len(report.Anomalies),
		ViolationCount:        len(violations),
		TrendPercent:          report.Trend.TrendPercent,
		UnallocatedCost:       report.Aggregates.ByTeam[analytics.UnassignedTeam],
	})

	histogram := make(map[string]int)
	var highCost, idle, waste []string
	for _, r := range resources {
		histogram[r.Type]++
		if r.Cost30d != nil && *r.Cost30d > highCostThreshold {
			highCost = append(highCost, r.ID)
		}
		if r.IdleScore >= idleListThreshold {
			idle = append(idle, r.ID)
		}
		if len(r.WasteReasons) > 0 {
			waste = append(waste, r.ID)
		}
	}

	return &costmodel.AnalysisResult{
		Meta: costmodel.Meta{
			Provider:    name,
			PeriodDays:  p.periodDays,
			GeneratedAt: p.now().UTC(),
		},
		Summary: costmodel.Summary{
			TotalCost:     total,
			Currency:      currency,
			RecordCount:   len(costs),
			ResourceCount: len(resources),
		},
		Executive:  executive,
		Trend:      report.Trend,
		Daily:      report.Daily,
		Anomalies:  report.Anomalies,
		Forecast:   report.Forecast,
		Violations: violations,
		Candidates: candidates,
		Findings:   findings,
		Aggregates: report.Aggregates,
		Drivers:    report.Drivers,
		Histogram:  histogram,
		Resources:  resources,

		HighCostResources: highCost,
		IdleResources:     idle,
		WasteResources:    waste,
	}
}

func (p *Pipeline) endStage(ctx context.Context, span trace.Span, stage string, start time.Time) {
	p.stageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
	span.End()
}
