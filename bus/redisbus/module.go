package redisbus

import (
	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/caching/rd"
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

// Module provides a bus.Transport over the shared Redis client. It expects
// rd.Module and bus.Module in the same graph.
func Module() fx.Option {
	return fx.Module("tokenbus/bus/redis",
		config.Provide[Config]("bus.redis"),
		fx.Provide(func(client rd.StreamManager, cfg Config, common bus.Config) bus.Transport {
			return bus.WithPublishTimeout(New(client, cfg), common.PublishTimeout)
		}),
	)
}
