// Package awscfg resolves the shared AWS SDK configuration used by the SNS/SQS
// bus driver and the DynamoDB revocation store.
package awscfg

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

var ErrPartialCredentials = errors.New("awscfg: both access key id and secret access key must be set")

// Config overrides the SDK's default resolution chain. Empty fields fall
// through to the environment and shared config files.
type Config struct {
	Region          string `mapstructure:"region" default:"us-east-1"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := make([]func(*awsconfig.LoadOptions) error, 0, 3)
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return aws.Config{}, ErrPartialCredentials
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
