package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Options tweaks how the shared AWS config is built.
type Options struct {
	Region string
	// Endpoint points every client at a single URL, e.g. LocalStack.
	Endpoint string
	// Static credentials, used only when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

// OptionsFromEnv reads AWS_REGION, AWS_ENDPOINT (or the per-service
// AWS_S3_ENDPOINT / AWS_SQS_ENDPOINT) and static LocalStack credentials.
func OptionsFromEnv() Options {
	endpoint := os.Getenv("AWS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("AWS_SQS_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = os.Getenv("AWS_S3_ENDPOINT")
	}
	return Options{
		Region:          os.Getenv("AWS_REGION"),
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
}

// LoadAWSConfig loads the default AWS config chain and applies opts on top.
func LoadAWSConfig(ctx context.Context, opts Options) (sdkaws.Config, error) {
	var loaders []func(*config.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}
	if opts.Endpoint != "" && opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	if opts.Endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(opts.Endpoint)
	}
	return cfg, nil
}
