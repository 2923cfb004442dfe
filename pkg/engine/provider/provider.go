// Package provider defines the gateway contract every cloud adapter
// implements and the registry the pipeline resolves adapters from.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// Gateway is the normalized surface of one cloud provider. GetCosts and
// GetInfrastructure are required; utilization is best-effort and a gateway
// that cannot serve it returns an empty map with no error.
type Gateway interface {
	Name() string
	GetCosts(ctx context.Context, days int) ([]costmodel.NormalizedCost, error)
	GetInfrastructure(ctx context.Context) ([]costmodel.Resource, error)
	GetUtilizationMetrics(ctx context.Context, resourceIDs []string) (map[string]costmodel.Utilization, error)
}

// ResourceCoster is the optional capability of mapping 30-day spend onto
// individual resources. Gateways without per-resource billing simply do not
// implement it.
type ResourceCoster interface {
	GetResourceCosts(ctx context.Context, days int) (map[string]float64, error)
}

// Pinger is the optional capability behind provider status checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Factory builds a configured gateway.
type Factory func(ctx context.Context) (Gateway, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Open builds the gateway registered under name.
func (r *Registry) Open(ctx context.Context, name string) (Gateway, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, r.Names())
	}
	return f(ctx)
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
