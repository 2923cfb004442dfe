package aws

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// Cost allocation tag the gateway maps onto the environment field.
const tagEnvironment = "environment"

// Gateway is the AWS provider adapter.
type Gateway struct {
	session *Session
	ce      *costexplorer.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewGateway builds the adapter on an authenticated session.
func NewGateway(session *Session, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		session: session,
		ce:      costexplorer.NewFromConfig(session.Config),
		logger:  logger,
		now:     time.Now,
	}
}

func (g *Gateway) Name() string { return "aws" }

// Ping validates credentials without touching billing APIs.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.session.AccountID(ctx)
	return err
}

// GetCosts pulls daily unblended cost grouped by service and environment
// tag for the trailing window.
func (g *Gateway) GetCosts(ctx context.Context, days int) ([]costmodel.NormalizedCost, error) {
	if days <= 0 {
		days = 30
	}
	end := g.now().UTC()
	start := end.AddDate(0, 0, -days)

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(costmodel.DateLayout)),
			End:   aws.String(end.Format(costmodel.DateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("SERVICE")},
			{Type: cetypes.GroupDefinitionTypeTag, Key: aws.String(tagEnvironment)},
		},
	}

	var costs []costmodel.NormalizedCost
	for {
		out, err := g.ce.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("cost explorer query: %w", err)
		}

		for _, window := range out.ResultsByTime {
			day, err := time.Parse(costmodel.DateLayout, aws.ToString(window.TimePeriod.Start))
			if err != nil {
				g.logger.Warn("unparseable cost window start", "start", aws.ToString(window.TimePeriod.Start))
				continue
			}
			for _, group := range window.Groups {
				metric, ok := group.Metrics["UnblendedCost"]
				if !ok {
					continue
				}
				amount, err := strconv.ParseFloat(aws.ToString(metric.Amount), 64)
				if err != nil || amount == 0 {
					continue
				}

				c := costmodel.NormalizedCost{
					Provider: "aws",
					Amount:   amount,
					Currency: aws.ToString(metric.Unit),
					Date:     day,
				}
				if len(group.Keys) > 0 {
					c.Service = group.Keys[0]
				}
				if len(group.Keys) > 1 {
					c.Environment = stripTagKey(group.Keys[1])
				}
				costs = append(costs, c)
			}
		}

		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	g.logger.Debug("cost explorer fetch complete", "records", len(costs), "days", days)
	return costs, nil
}

// GetResourceCosts maps trailing spend onto resource IDs. Requires the
// account to have resource-level Cost Explorer data enabled.
func (g *Gateway) GetResourceCosts(ctx context.Context, days int) (map[string]float64, error) {
	if days <= 0 {
		days = 30
	}
	// Resource-level CE data is only retained for 14 days.
	if days > 14 {
		days = 14
	}
	end := g.now().UTC()
	start := end.AddDate(0, 0, -days)

	input := &costexplorer.GetCostAndUsageWithResourcesInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(costmodel.DateLayout)),
			End:   aws.String(end.Format(costmodel.DateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
		Filter: &cetypes.Expression{
			Dimensions: &cetypes.DimensionValues{
				Key:    cetypes.DimensionService,
				Values: []string{"Amazon Elastic Compute Cloud - Compute"},
			},
		},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String("RESOURCE_ID")},
		},
	}

	totals := make(map[string]float64)
	for {
		out, err := g.ce.GetCostAndUsageWithResources(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("resource cost query: %w", err)
		}
		for _, window := range out.ResultsByTime {
			for _, group := range window.Groups {
				metric, ok := group.Metrics["UnblendedCost"]
				if !ok || len(group.Keys) == 0 {
					continue
				}
				amount, err := strconv.ParseFloat(aws.ToString(metric.Amount), 64)
				if err != nil {
					continue
				}
				totals[group.Keys[0]] += amount
			}
		}
		if aws.ToString(out.NextPageToken) == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}
	return totals, nil
}

// stripTagKey removes the "key$" prefix Cost Explorer puts on tag group
// values, e.g. "environment$production" -> "production".
func stripTagKey(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] == '$' {
			return v[i+1:]
		}
	}
	return ""
}
