package pipeline

import (
	"context"
	"time"

	"github.com/opsyield/opsyield/pkg/engine/provider"
	"github.com/opsyield/opsyield/pkg/engine/taskgroup"
)

// ProviderStatus is one provider's health check outcome.
type ProviderStatus struct {
	Provider  string    `json:"provider"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

const statusCacheKey = "provider-status"

// Status health-checks every registered provider concurrently. Each check
// is bounded by the status timeout; a slow provider comes back as a
// structured timed-out entry instead of stalling the call. Results are
// cached for the configured TTL.
func (p *Pipeline) Status(ctx context.Context) []ProviderStatus {
	if cached, ok := p.statusCache.Get(statusCacheKey); ok {
		return cached
	}

	names := p.registry.Names()
	tasks := make([]taskgroup.Task[ProviderStatus], len(names))
	for i, name := range names {
		name := name
		tasks[i] = func(ctx context.Context) (ProviderStatus, error) {
			return p.checkOne(ctx, name), nil
		}
	}

	results := taskgroup.Join(ctx, p.concurrency, tasks)
	statuses := make([]ProviderStatus, len(results))
	for i, res := range results {
		statuses[i] = res.Value
	}

	p.statusCache.Set(statusCacheKey, statuses)
	return statuses
}

func (p *Pipeline) checkOne(ctx context.Context, name string) ProviderStatus {
	status := ProviderStatus{Provider: name, CheckedAt: p.now().UTC()}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.statusTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		gw, err := p.registry.Open(ctx, name)
		if err != nil {
			done <- err
			return
		}
		if pinger, ok := gw.(provider.Pinger); ok {
			done <- pinger.Ping(ctx)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		status.LatencyMS = time.Since(start).Milliseconds()
		if err != nil {
			status.Error = err.Error()
		} else {
			status.Healthy = true
		}
	case <-ctx.Done():
		status.LatencyMS = time.Since(start).Milliseconds()
		status.Error = "status check timed out"
	}
	return status
}
