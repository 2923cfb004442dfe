package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/opsyield/opsyield/pkg/costmodel"
)

// GetInfrastructure inventories EC2 instances as normalized resources.
func (g *Gateway) GetInfrastructure(ctx context.Context) ([]costmodel.Resource, error) {
	client := ec2.NewFromConfig(g.session.Config)

	var resources []costmodel.Resource
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				resources = append(resources, normalizeInstance(g.session.Config.Region, instance))
			}
		}
	}

	g.logger.Debug("ec2 inventory complete", "resources", len(resources))
	return resources, nil
}

func normalizeInstance(region string, instance ec2types.Instance) costmodel.Resource {
	tags := parseTags(instance.Tags)

	r := costmodel.Resource{
		ID:       aws.ToString(instance.InstanceId),
		Name:     tags["Name"],
		Type:     "ec2_instance",
		Provider: "aws",
		Region:   region,
		State:    normalizeState(instance.State),
		Class:    string(instance.InstanceType),
		Tags:     tags,
	}
	if instance.LaunchTime != nil {
		r.CreatedAt = *instance.LaunchTime
	}
	if instance.PublicIpAddress != nil {
		r.ExternalIP = aws.ToString(instance.PublicIpAddress)
	}
	return r
}

func normalizeState(state *ec2types.InstanceState) string {
	if state == nil {
		return costmodel.StateUnknown
	}
	switch state.Name {
	case ec2types.InstanceStateNameRunning, ec2types.InstanceStateNamePending:
		return costmodel.StateRunning
	case ec2types.InstanceStateNameStopped, ec2types.InstanceStateNameStopping:
		return costmodel.StateStopped
	case ec2types.InstanceStateNameTerminated, ec2types.InstanceStateNameShuttingDown:
		return costmodel.StateTerminated
	default:
		return strings.ToLower(string(state.Name))
	}
}

func parseTags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}
