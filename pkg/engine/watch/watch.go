// Package watch runs the independent analyzers that sweep the full
// resource+cost snapshot of a run: idle detection, cost spikes, security
// exposure. Watchers are side-effect free and isolated from each other.
package watch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsyield/opsyield/pkg/costmodel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Watcher consumes the immutable snapshot and emits typed findings.
// Implementations must not mutate their input.
type Watcher interface {
	Name() string
	Watch(resources []costmodel.Resource, costs []costmodel.NormalizedCost) ([]costmodel.Finding, error)
}

// Runner invokes every registered watcher, catching errors and panics per
// watcher so one misbehaving analyzer cannot suppress the others' findings.
type Runner struct {
	watchers []Watcher
	logger   *slog.Logger
}

// NewRunner returns a runner seeded with the reference watchers.
func NewRunner(logger *slog.Logger) *Runner {
	r := &Runner{logger: logger}
	r.Register(NewIdleWatcher(DefaultIdleConfig()))
	r.Register(NewSpikeWatcher(DefaultSpikeConfig()))
	r.Register(SecurityWatcher{})
	return r
}

// NewEmptyRunner returns a runner with no watchers registered.
func NewEmptyRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Register adds a watcher.
func (r *Runner) Register(w Watcher) {
	r.watchers = append(r.watchers, w)
}

// Run executes all watchers and concatenates their findings in
// registration order.
func (r *Runner) Run(ctx context.Context, resources []costmodel.Resource, costs []costmodel.NormalizedCost) []costmodel.Finding {
	tracer := otel.Tracer("opsyield/watch")

	var out []costmodel.Finding
	for _, w := range r.watchers {
		_, span := tracer.Start(ctx, "Watcher."+w.Name())
		findings, err := r.watchOne(w, resources, costs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.log().Error("watcher failed, skipping", "watcher", w.Name(), "error", err)
		} else {
			span.SetAttributes(attribute.Int("findings", len(findings)))
			out = append(out, findings...)
		}
		span.End()
	}
	return out
}

func (r *Runner) watchOne(w Watcher, resources []costmodel.Resource, costs []costmodel.NormalizedCost) (findings []costmodel.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			findings, err = nil, fmt.Errorf("watcher panic: %v", rec)
		}
	}()
	return w.Watch(resources, costs)
}

func (r *Runner) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
