package snsbus

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

// Module provides a bus.Transport over SNS and SQS. It expects bus.Module and
// awscfg.Module in the same graph.
func Module() fx.Option {
	return fx.Module("tokenbus/bus/sns",
		config.Provide[Config]("bus.sns"),
		fx.Provide(
			func(cfg aws.Config) *sns.Client { return sns.NewFromConfig(cfg) },
			func(cfg aws.Config) *sqs.Client { return sqs.NewFromConfig(cfg) },
			func(s *sns.Client, q *sqs.Client, cfg Config, common bus.Config) bus.Transport {
				return bus.WithPublishTimeout(New(s, q, cfg), common.PublishTimeout)
			},
		),
	)
}
