// Package analytics turns a run's normalized cost records into trend,
// anomaly, forecast, and dimensional views. The engine is pure: given the
// same records it produces byte-identical output, with no clock or random
// dependency.
package analytics

import (
	"fmt"
	"sort"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/stats"
)

// Default z-score severity thresholds.
const (
	DefaultZMedium = 2.0
	DefaultZHigh   = 3.0
)

// ForecastHorizonDays is the projection window of the spend forecast.
const ForecastHorizonDays = 30

// Defaults applied to unattributed dimensions.
const (
	UnassignedTeam         = "Unassigned"
	UnassignedBusinessUnit = "Unassigned"
	UnknownEnvironment     = "Unknown"
)

// Config tunes anomaly sensitivity.
type Config struct {
	ZMedium float64 `mapstructure:"z_medium"`
	ZHigh   float64 `mapstructure:"z_high"`
}

// DefaultConfig returns the standard 2.0/3.0 split.
func DefaultConfig() Config {
	return Config{ZMedium: DefaultZMedium, ZHigh: DefaultZHigh}
}

// Report is the analytics output for one provider run.
type Report struct {
	Trend      costmodel.TrendStats
	Daily      []costmodel.DailyCost
	Anomalies  []costmodel.Anomaly
	Forecast   costmodel.Forecast
	Aggregates costmodel.Aggregates
	Drivers    []costmodel.CostDriver
}

// Engine groups cost records and runs the statistics kernel over them.
type Engine struct {
	cfg Config
}

// New returns an engine with the given thresholds, falling back to the
// defaults for unset values.
func New(cfg Config) *Engine {
	if cfg.ZMedium <= 0 {
		cfg.ZMedium = DefaultZMedium
	}
	if cfg.ZHigh <= 0 {
		cfg.ZHigh = DefaultZHigh
	}
	return &Engine{cfg: cfg}
}

// AnomalyID builds the stable identifier used for snapshot diffing.
func AnomalyID(service, date string) string {
	return fmt.Sprintf("%s:%s", service, date)
}

// Analyze computes the full analytics report. The input slice is not
// modified; records are copied before the internal chronological sort.
func (e *Engine) Analyze(costs []costmodel.NormalizedCost) Report {
	sorted := make([]costmodel.NormalizedCost, len(costs))
	copy(sorted, costs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		if sorted[i].Service != sorted[j].Service {
			return sorted[i].Service < sorted[j].Service
		}
		return sorted[i].ResourceID < sorted[j].ResourceID
	})

	rep := Report{
		Trend:      e.trend(sorted),
		Daily:      dailySeries(sorted),
		Anomalies:  e.anomalies(sorted),
		Aggregates: aggregate(sorted),
	}

	daily := make([]float64, len(rep.Daily))
	for i, d := range rep.Daily {
		daily[i] = d.Amount
	}
	avg, projected, lower, upper := stats.ForecastNextPeriod(daily, ForecastHorizonDays)
	rep.Forecast = costmodel.Forecast{
		HorizonDays:  ForecastHorizonDays,
		DailyAverage: avg,
		Projected:    projected,
		LowerBound:   lower,
		UpperBound:   upper,
	}

	rep.Drivers = drivers(rep.Aggregates.ByService)
	return rep
}

// trend splits the chronologically sorted record list at its middle index,
// not at the midpoint of the time range.
func (e *Engine) trend(sorted []costmodel.NormalizedCost) costmodel.TrendStats {
	mid := len(sorted) / 2
	var first, second float64
	for i, c := range sorted {
		if i < mid {
			first += c.Amount
		} else {
			second += c.Amount
		}
	}
	return costmodel.TrendStats{
		FirstHalfTotal:  first,
		SecondHalfTotal: second,
		TrendPercent:    stats.TrendPercent(first, second),
	}
}

func (e *Engine) anomalies(sorted []costmodel.NormalizedCost) []costmodel.Anomaly {
	// service -> day -> total
	perService := map[string]map[string]float64{}
	for _, c := range sorted {
		byDay, ok := perService[c.Service]
		if !ok {
			byDay = map[string]float64{}
			perService[c.Service] = byDay
		}
		byDay[c.Day()] += c.Amount
	}

	services := make([]string, 0, len(perService))
	for s := range perService {
		services = append(services, s)
	}
	sort.Strings(services)

	var out []costmodel.Anomaly
	for _, svc := range services {
		byDay := perService[svc]
		days := make([]string, 0, len(byDay))
		for d := range byDay {
			days = append(days, d)
		}
		sort.Strings(days)

		series := make([]float64, len(days))
		for i, d := range days {
			series[i] = byDay[d]
		}

		zs := stats.ZScores(series)
		if zs == nil {
			// Fewer than 3 distinct days or zero spread: skip, not an error.
			continue
		}

		for i, z := range zs {
			if z <= e.cfg.ZMedium {
				continue
			}
			severity := costmodel.SeverityMedium
			if z > e.cfg.ZHigh {
				severity = costmodel.SeverityHigh
			}
			expected := baselineMean(series, i)
			out = append(out, costmodel.Anomaly{
				ID:           AnomalyID(svc, days[i]),
				Service:      svc,
				Date:         days[i],
				Cost:         series[i],
				Expected:     expected,
				ZScore:       z,
				DeviationPct: deviationPct(series[i], expected),
				Severity:     severity,
			})
		}
	}
	return out
}

// baselineMean is the mean of the series excluding index i, matching the
// leave-one-out baseline of the z-score computation.
func baselineMean(series []float64, i int) float64 {
	if len(series) < 2 {
		return 0
	}
	sum := 0.0
	for j, v := range series {
		if j != i {
			sum += v
		}
	}
	return sum / float64(len(series)-1)
}

func deviationPct(actual, expected float64) float64 {
	if expected <= 0 {
		return 100.0
	}
	return (actual - expected) / expected * 100.0
}

func dailySeries(sorted []costmodel.NormalizedCost) []costmodel.DailyCost {
	totals := map[string]float64{}
	for _, c := range sorted {
		totals[c.Day()] += c.Amount
	}
	days := make([]string, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]costmodel.DailyCost, len(days))
	for i, d := range days {
		out[i] = costmodel.DailyCost{Date: d, Amount: totals[d]}
	}
	return out
}

func aggregate(costs []costmodel.NormalizedCost) costmodel.Aggregates {
	agg := costmodel.Aggregates{
		ByService:      map[string]float64{},
		ByTeam:         map[string]float64{},
		ByBusinessUnit: map[string]float64{},
		ByEnvironment:  map[string]float64{},
	}
	for _, c := range costs {
		agg.ByService[c.Service] += c.Amount
		agg.ByTeam[orDefault(c.Team, UnassignedTeam)] += c.Amount
		agg.ByBusinessUnit[orDefault(c.BusinessUnit, UnassignedBusinessUnit)] += c.Amount
		agg.ByEnvironment[orDefault(c.Environment, UnknownEnvironment)] += c.Amount
	}
	return agg
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func drivers(byService map[string]float64) []costmodel.CostDriver {
	total := 0.0
	for _, v := range byService {
		total += v
	}

	out := make([]costmodel.CostDriver, 0, len(byService))
	for svc, amount := range byService {
		share := 0.0
		if total > 0 {
			share = amount / total * 100.0
		}
		out = append(out, costmodel.CostDriver{Service: svc, Amount: amount, SharePct: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Service < out[j].Service
	})
	return out
}
