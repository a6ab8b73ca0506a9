package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

func load(ctx context.Context, region string) (awssdk.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("failed to load aws config for %s: %w", region, err)
	}
	return cfg, nil
}

// SESClient sends newsletters and welcome mails through Amazon SES.
type SESClient struct {
	*ses.Client
}

func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := load(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SESClient{Client: ses.NewFromConfig(cfg)}, nil
}

// SNSClient publishes pipeline failure alerts.
type SNSClient struct {
	*sns.Client
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := load(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SNSClient{Client: sns.NewFromConfig(cfg)}, nil
}
