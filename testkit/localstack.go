package testkit

import (
	"fmt"
	"time"

	"github.com/bronystylecrazy/tokenbus/cloud/awscfg"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultLocalStackImage          = "localstack/localstack:3.8"
	defaultLocalStackPort           = "4566/tcp"
	defaultLocalStackRegion         = "us-east-1"
	defaultLocalStackStartupTimeout = 2 * time.Minute
)

type LocalStackOptions struct {
	Image          string
	Region         string
	StartupTimeout time.Duration
}

// LocalStackContainer emulates SNS, SQS and DynamoDB. Any non-empty static
// credentials are accepted.
type LocalStackContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	Region    string
}

func (s *Suite) StartLocalStack(opts LocalStackOptions) *LocalStackContainer {
	s.t.Helper()
	opts = withLocalStackDefaults(opts)

	c := s.StartContainer(testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{defaultLocalStackPort},
		Env: map[string]string{
			"SERVICES":       "sns,sqs,dynamodb",
			"DEFAULT_REGION": opts.Region,
		},
		WaitingFor: wait.ForHTTP("/_localstack/health").
			WithPort(defaultLocalStackPort).
			WithStartupTimeout(opts.StartupTimeout),
	})

	return &LocalStackContainer{
		Container: c,
		Host:      s.Host(c),
		Port:      s.MappedPort(c, defaultLocalStackPort),
		Region:    opts.Region,
	}
}

func (c *LocalStackContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", c.Host, c.Port)
}

// Config points the AWS SDK at the container.
func (c *LocalStackContainer) Config() awscfg.Config {
	return awscfg.Config{
		Region:          c.Region,
		Endpoint:        c.Endpoint(),
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
}

func withLocalStackDefaults(opts LocalStackOptions) LocalStackOptions {
	if opts.Image == "" {
		opts.Image = defaultLocalStackImage
	}
	if opts.Region == "" {
		opts.Region = defaultLocalStackRegion
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultLocalStackStartupTimeout
	}
	return opts
}
