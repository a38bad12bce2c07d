package rd

import redis "github.com/redis/go-redis/v9"

type StringManager interface {
	redis.StringCmdable
}

type HashManager interface {
	redis.HashCmdable
}

type SortedSetManager interface {
	redis.SortedSetCmdable
}

type StreamManager interface {
	redis.StreamCmdable
}

// RedisClient is the subset of *redis.Client the stores and bus transports use.
type RedisClient interface {
	redis.Cmdable
	Close() error
}
