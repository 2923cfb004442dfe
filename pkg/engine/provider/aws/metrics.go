package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

const utilizationWindow = 7 * 24 * time.Hour

// GetUtilizationMetrics averages CPUUtilization over the trailing week per
// instance. Metrics are best-effort: a failed or empty query for one
// resource leaves it out of the map instead of failing the batch.
func (g *Gateway) GetUtilizationMetrics(ctx context.Context, resourceIDs []string) (map[string]costmodel.Utilization, error) {
	client := cloudwatch.NewFromConfig(g.session.Config)
	end := g.now().UTC()
	start := end.Add(-utilizationWindow)

	out := make(map[string]costmodel.Utilization, len(resourceIDs))
	for _, id := range resourceIDs {
		avg, ok := g.cpuAverage(ctx, client, id, start, end)
		if !ok {
			continue
		}
		out[id] = costmodel.Utilization{CPUAvg: &avg}
	}
	return out, nil
}

func (g *Gateway) cpuAverage(ctx context.Context, client *cloudwatch.Client, instanceID string, start, end time.Time) (float64, bool) {
	result, err := client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/EC2"),
		MetricName: aws.String("CPUUtilization"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("InstanceId"), Value: aws.String(instanceID)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		g.logger.Warn("cloudwatch query failed", "instance", instanceID, "error", err)
		return 0, false
	}
	if len(result.Datapoints) == 0 {
		return 0, false
	}

	var sum float64
	var n int
	for _, dp := range result.Datapoints {
		if dp.Average != nil {
			sum += *dp.Average
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
