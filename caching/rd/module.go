package rd

import (
	"github.com/bronystylecrazy/tokenbus/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/caching/redis",
		config.Provide[Config]("caching.redis"),
		fx.Provide(
			NewClient,
			func(c *redis.Client) RedisClient { return c },
			func(c *redis.Client) StreamManager { return c },
		),
		fx.Invoke(registerClient),
	)
}
