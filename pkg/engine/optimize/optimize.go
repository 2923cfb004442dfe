// Package optimize evaluates pluggable savings strategies over the run's
// cost records. A strategy failure (error or panic) skips that record for
// that strategy only; siblings keep running.
package optimize

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// Strategy inspects a single cost record and either returns an optimization
// candidate or nil.
type Strategy interface {
	Name() string
	Analyze(c costmodel.NormalizedCost) (*costmodel.Candidate, error)
}

// Engine runs every registered strategy over every record.
type Engine struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New returns an engine seeded with the built-in baseline strategy.
func New(logger *slog.Logger) *Engine {
	e := &Engine{logger: logger}
	e.Register(BaselineStrategy{DevCostFloor: DefaultDevCostFloor})
	return e
}

// NewEmpty returns an engine with no strategies registered.
func NewEmpty(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Register appends a strategy.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
}

// Run produces all candidates, sorted by potential savings descending.
func (e *Engine) Run(costs []costmodel.NormalizedCost) []costmodel.Candidate {
	var out []costmodel.Candidate
	for _, c := range costs {
		for _, s := range e.strategies {
			cand, err := e.analyzeOne(s, c)
			if err != nil {
				e.log().Warn("strategy failed, skipping record",
					"strategy", s.Name(), "resource", c.ResourceID, "error", err)
				continue
			}
			if cand != nil {
				cand.Strategy = s.Name()
				out = append(out, *cand)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Savings != out[j].Savings {
			return out[i].Savings > out[j].Savings
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// analyzeOne contains the panic barrier so one misbehaving strategy cannot
// take down the run.
func (e *Engine) analyzeOne(s Strategy, c costmodel.NormalizedCost) (cand *costmodel.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cand, err = nil, fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return s.Analyze(c)
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// TotalSavings sums the potential savings of a candidate list.
func TotalSavings(cands []costmodel.Candidate) float64 {
	total := 0.0
	for _, c := range cands {
		total += c.Savings
	}
	return total
}

// DefaultDevCostFloor is the spend above which a development-environment
// record is worth a review.
const DefaultDevCostFloor = 50.0

// BaselineStrategy flags records tagged idle and expensive development
// spend. An idle record's full cost counts as recoverable savings; a
// development record is only flagged for review.
type BaselineStrategy struct {
	DevCostFloor float64
}

func (BaselineStrategy) Name() string { return "baseline" }

func (s BaselineStrategy) Analyze(c costmodel.NormalizedCost) (*costmodel.Candidate, error) {
	score := 0.0
	savings := 0.0
	var reasons []string

	if c.Tags["idle"] == "true" {
		score += 100
		savings = c.Amount
		reasons = append(reasons, "record tagged idle")
	}
	if c.Environment == "development" && c.Amount > s.DevCostFloor {
		score += 20
		reasons = append(reasons, fmt.Sprintf("development spend $%.2f above $%.2f floor", c.Amount, s.DevCostFloor))
	}

	if score == 0 {
		return nil, nil
	}

	subject := c.ResourceID
	if subject == "" {
		subject = c.Service
	}
	return &costmodel.Candidate{
		Subject: subject,
		Service: c.Service,
		Score:   costmodel.ClampScore(score),
		Savings: savings,
		Reasons: reasons,
	}, nil
}
