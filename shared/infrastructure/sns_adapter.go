package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/draftea/saga-orchestrator/shared/logger"
	"github.com/pkg/errors"
)

// AWSConfig selects the region and, for LocalStack, the endpoint of the
// messaging clients. Empty values fall back to the SDK defaults.
type AWSConfig struct {
	Region   string
	Endpoint string
}

// LoadAWSConfig loads the default AWS config chain.
func LoadAWSConfig(ctx context.Context, cfg AWSConfig) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS config")
	}
	return awsCfg, nil
}

// NewSNSPublisherAdapter builds an SNS publisher for topicArn
func NewSNSPublisherAdapter(awsCfg aws.Config, endpoint, topicArn string, log *logger.Logger) *SNSEventPublisher {
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewSNSEventPublisher(client, topicArn, log)
}

func newSQSClient(awsCfg aws.Config, endpoint string) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}
