package testkit

import (
	"fmt"
	"time"

	"github.com/bronystylecrazy/tokenbus/caching/rd"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultRedisImage          = "redis:7-alpine"
	defaultRedisPort           = "6379/tcp"
	defaultRedisStartupTimeout = 90 * time.Second
)

type RedisOptions struct {
	Image          string
	Password       string
	StartupTimeout time.Duration
}

type RedisContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	Password  string
}

// StartRedis starts a Redis server with streams and sorted sets, enough for
// redisbus and the redis revocation store.
func (s *Suite) StartRedis(opts RedisOptions) *RedisContainer {
	s.t.Helper()
	opts = withRedisDefaults(opts)

	req := testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{defaultRedisPort},
		WaitingFor:   wait.ForListeningPort(defaultRedisPort).WithStartupTimeout(opts.StartupTimeout),
	}
	if opts.Password != "" {
		req.Cmd = []string{"redis-server", "--appendonly", "no", "--requirepass", opts.Password}
	}
	c := s.StartContainer(req)

	return &RedisContainer{
		Container: c,
		Host:      s.Host(c),
		Port:      s.MappedPort(c, defaultRedisPort),
		Password:  opts.Password,
	}
}

func (c *RedisContainer) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Config is a caching.redis section pointing at the container.
func (c *RedisContainer) Config() rd.Config {
	return rd.Config{
		Network:      "tcp",
		Addr:         c.Addr(),
		Protocol:     3,
		Password:     c.Password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		PoolTimeout:  4 * time.Second,
	}
}

func withRedisDefaults(opts RedisOptions) RedisOptions {
	if opts.Image == "" {
		opts.Image = defaultRedisImage
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultRedisStartupTimeout
	}
	return opts
}
