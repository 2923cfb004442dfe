// Package aws implements the provider gateway for AWS on Cost Explorer,
// EC2 and CloudWatch.
package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/opsyield/opsyield/pkg/version"
)

// Session bundles the shared SDK config and the identity client.
type Session struct {
	Config aws.Config
	STS    *sts.Client
}

// NewSession loads credentials and region the standard SDK way and stamps
// every request with an identifying User-Agent.
func NewSession(ctx context.Context, region, profile string) (*Session, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	// Endpoint override hook for localstack-style test harnesses.
	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws sdk config: %w", err)
	}

	cfg.APIOptions = append(cfg.APIOptions, func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("OpsyieldUserAgent", func(ctx context.Context, input middleware.BuildInput, next middleware.BuildHandler) (
			middleware.BuildOutput, middleware.Metadata, error,
		) {
			if req, ok := input.Request.(*smithyhttp.Request); ok {
				ua := req.Header.Get("User-Agent")
				if ua == "" {
					ua = "opsyield"
				}
				req.Header.Set("User-Agent", fmt.Sprintf("%s opsyield/%s", ua, version.Version))
			}
			return next.HandleBuild(ctx, input)
		}), middleware.After)
	})

	return &Session{
		Config: cfg,
		STS:    sts.NewFromConfig(cfg),
	}, nil
}

// AccountID validates the credentials and returns the caller's account.
func (s *Session) AccountID(ctx context.Context) (string, error) {
	out, err := s.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}
