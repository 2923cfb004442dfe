package provider

import (
	"context"
	"time"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// MockGateway serves a fixed, deterministic dataset: a steady EC2 baseline
// with one spike day, an idle stopped instance, and a publicly exposed
// database. Demos and pipeline tests run against it without credentials.
type MockGateway struct {
	// Anchor is the last day of the generated cost window. Zero means
	// today (UTC), which makes demo output current but non-reproducible.
	Anchor time.Time
}

func NewMockGateway(anchor time.Time) *MockGateway {
	return &MockGateway{Anchor: anchor}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) anchor() time.Time {
	if g.Anchor.IsZero() {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return g.Anchor
}

func (g *MockGateway) GetCosts(ctx context.Context, days int) ([]costmodel.NormalizedCost, error) {
	if days <= 0 {
		days = 7
	}
	end := g.anchor()
	var costs []costmodel.NormalizedCost
	for i := days - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)

		ec2Amount := 10.0
		if i == 0 {
			// Spike on the final day.
			ec2Amount = 50.0
		}
		costs = append(costs,
			costmodel.NormalizedCost{
				Provider: "mock", Service: "EC2", Region: "us-east-1",
				ResourceID: "i-mock-web", Amount: ec2Amount, Currency: "USD",
				Date: day, Team: "platform", BusinessUnit: "core",
				Environment: "production",
			},
			costmodel.NormalizedCost{
				Provider: "mock", Service: "RDS", Region: "us-east-1",
				ResourceID: "db-mock-orders", Amount: 25.0, Currency: "USD",
				Date: day, Environment: "production",
			},
			costmodel.NormalizedCost{
				Provider: "mock", Service: "EC2", Region: "us-east-1",
				ResourceID: "i-mock-scratch", Amount: 60.0, Currency: "USD",
				Date: day, Environment: "development",
				Tags: map[string]string{"idle": "true"},
			},
		)
	}
	return costs, nil
}

func (g *MockGateway) GetInfrastructure(ctx context.Context) ([]costmodel.Resource, error) {
	created := g.anchor().AddDate(0, 0, -60)
	return []costmodel.Resource{
		{
			ID: "i-mock-web", Name: "web-1", Type: "ec2_instance",
			Provider: "mock", Region: "us-east-1", State: costmodel.StateRunning,
			Class: "m5.large", CreatedAt: created,
		},
		{
			ID: "i-mock-scratch", Name: "scratch", Type: "ec2_instance",
			Provider: "mock", Region: "us-east-1", State: costmodel.StateStopped,
			Class: "t1.micro", CreatedAt: created,
			Tags: map[string]string{"idle": "true"},
		},
		{
			ID: "db-mock-orders", Name: "orders-db", Type: "rds_mysql",
			Provider: "mock", Region: "us-east-1", State: costmodel.StateRunning,
			Class: "db.m5.large", CreatedAt: created, ExternalIP: "203.0.113.10",
		},
	}, nil
}

func (g *MockGateway) GetUtilizationMetrics(ctx context.Context, resourceIDs []string) (map[string]costmodel.Utilization, error) {
	fixed := map[string]costmodel.Utilization{
		"i-mock-web":     {CPUAvg: ptr(42.5)},
		"i-mock-scratch": {CPUAvg: ptr(1.2)},
	}
	out := make(map[string]costmodel.Utilization, len(resourceIDs))
	for _, id := range resourceIDs {
		if u, ok := fixed[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (g *MockGateway) GetResourceCosts(ctx context.Context, days int) (map[string]float64, error) {
	if days <= 0 {
		days = 30
	}
	return map[string]float64{
		"i-mock-web":     10.0 * float64(days),
		"i-mock-scratch": 60.0 * float64(days),
		"db-mock-orders": 25.0 * float64(days),
	}, nil
}

func (g *MockGateway) Ping(ctx context.Context) error { return nil }

func ptr(v float64) *float64 { return &v }
