// Package governance evaluates declarative cost policies against aggregated
// scope data. Conditions are CEL expressions compiled against a closed
// variable set — no attribute walking, no function calls, no access outside
// the evaluation context.
package governance

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/opsyield/opsyield/pkg/costmodel"
	"github.com/opsyield/opsyield/pkg/engine/analytics"
)

// compiledPolicy pairs a policy with its executable program.
type compiledPolicy struct {
	policy  costmodel.Policy
	program cel.Program
}

// Engine compiles and runs governance policies.
type Engine struct {
	env      *cel.Env
	programs []compiledPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// New initializes the CEL environment with the supported scope variables.
func New(logger *slog.Logger) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("environment", decls.String),
			decls.NewVar("monthly_cost", decls.Double),
			decls.NewVar("cost", decls.Double),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Engine{env: env, logger: logger, now: time.Now}, nil
}

// Compile builds programs for the given policies. With failClosed set, the
// first bad condition aborts the load; otherwise bad policies are logged
// and skipped so the remainder still applies.
func (e *Engine) Compile(policies []costmodel.Policy, failClosed bool) error {
	compiled := make([]compiledPolicy, 0, len(policies))
	for _, p := range policies {
		ast, issues := e.env.Compile(p.Condition)
		if issues != nil && issues.Err() != nil {
			if failClosed {
				return fmt.Errorf("policy %q: %w", p.Name, issues.Err())
			}
			e.log().Error("policy condition rejected, skipping", "policy", p.Name, "error", issues.Err())
			continue
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			if failClosed {
				return fmt.Errorf("policy %q: %w", p.Name, err)
			}
			e.log().Error("policy program creation failed, skipping", "policy", p.Name, "error", err)
			continue
		}
		compiled = append(compiled, compiledPolicy{policy: p, program: prg})
	}
	e.programs = compiled
	return nil
}

// PolicyCount reports how many policies survived compilation.
func (e *Engine) PolicyCount() int {
	return len(e.programs)
}

// Evaluate runs every policy against per-environment cost totals for the
// analysis period. A policy that fails to evaluate is logged and skipped;
// one bad policy never blocks the others.
func (e *Engine) Evaluate(costs []costmodel.NormalizedCost) []costmodel.Violation {
	envTotals := map[string]float64{}
	for _, c := range costs {
		env := c.Environment
		if env == "" {
			env = analytics.UnknownEnvironment
		}
		envTotals[env] += c.Amount
	}

	envs := make([]string, 0, len(envTotals))
	for env := range envTotals {
		envs = append(envs, env)
	}
	sort.Strings(envs)

	var violations []costmodel.Violation
	for _, cp := range e.programs {
		for _, env := range envs {
			total := envTotals[env]
			out, _, err := cp.program.Eval(map[string]interface{}{
				"environment":  env,
				"monthly_cost": total,
				"cost":         total,
			})
			if err != nil {
				e.log().Error("policy evaluation failed, skipping", "policy", cp.policy.Name, "scope", env, "error", err)
				continue
			}
			matched, ok := out.Value().(bool)
			if !ok {
				e.log().Error("policy condition is not boolean, skipping", "policy", cp.policy.Name)
				continue
			}
			if matched {
				violations = append(violations, costmodel.Violation{
					Policy:    cp.policy.Name,
					Scope:     "environment=" + env,
					Value:     total,
					Action:    cp.policy.Action,
					Timestamp: e.now().UTC(),
				})
			}
		}
	}
	return violations
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
