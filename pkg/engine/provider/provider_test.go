package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var anchor = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func TestRegistryResolvesByName(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", func(ctx context.Context) (Gateway, error) {
		return NewMockGateway(anchor), nil
	})

	gw, err := r.Open(context.Background(), "mock")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gw.Name() != "mock" {
		t.Errorf("Name = %q", gw.Name())
	}

	if _, err := r.Open(context.Background(), "azure"); err == nil {
		t.Error("expected an error for an unregistered provider")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	fail := func(ctx context.Context) (Gateway, error) { return nil, errors.New("unused") }
	r.Register("gcp", fail)
	r.Register("aws", fail)
	r.Register("mock", fail)

	names := r.Names()
	want := []string{"aws", "gcp", "mock"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names = %v, want %v", names, want)
		}
	}
}

func TestMockGatewayIsDeterministic(t *testing.T) {
	g := NewMockGateway(anchor)
	ctx := context.Background()

	first, err := g.GetCosts(ctx, 7)
	if err != nil {
		t.Fatalf("GetCosts: %v", err)
	}
	second, _ := g.GetCosts(ctx, 7)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("two identical calls produced different datasets")
	}
	if len(first) != 21 {
		t.Errorf("records = %d, want 3 services x 7 days", len(first))
	}
}

func TestMockGatewaySpikeOnFinalDay(t *testing.T) {
	g := NewMockGateway(anchor)
	costs, err := g.GetCosts(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}

	var spike bool
	for _, c := range costs {
		if c.Service == "EC2" && c.ResourceID == "i-mock-web" && c.Day() == "2026-08-28" {
			if c.Amount != 50 {
				t.Errorf("final EC2 day = %v, want 50", c.Amount)
			}
			spike = true
		}
	}
	if !spike {
		t.Error("spike day record missing")
	}
}

func TestMockGatewayCapabilities(t *testing.T) {
	var gw Gateway = NewMockGateway(anchor)
	ctx := context.Background()

	resources, err := gw.GetInfrastructure(ctx)
	if err != nil || len(resources) != 3 {
		t.Fatalf("GetInfrastructure = %d resources, %v", len(resources), err)
	}

	util, err := gw.GetUtilizationMetrics(ctx, []string{"i-mock-scratch", "db-mock-orders"})
	if err != nil {
		t.Fatalf("GetUtilizationMetrics: %v", err)
	}
	if u, ok := util["i-mock-scratch"]; !ok || u.CPUAvg == nil || *u.CPUAvg != 1.2 {
		t.Errorf("scratch utilization = %+v", util)
	}
	if _, ok := util["db-mock-orders"]; ok {
		t.Error("db has no metrics and must be absent, not zeroed")
	}

	rc, ok := gw.(ResourceCoster)
	if !ok {
		t.Fatal("mock gateway must expose per-resource costs")
	}
	costs, err := rc.GetResourceCosts(ctx, 30)
	if err != nil || costs["i-mock-web"] != 300 {
		t.Errorf("GetResourceCosts = %v, %v", costs, err)
	}

	if _, ok := gw.(Pinger); !ok {
		t.Error("mock gateway must be pingable")
	}
}
