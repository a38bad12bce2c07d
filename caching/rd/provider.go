package rd

import (
	"context"
	"sync"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	inMemoryMu     sync.Mutex
	inMemoryServer *miniredis.Miniredis
)

// NewClient dials cfg.Addr, or a process-wide miniredis when InMemory is set.
func NewClient(cfg Config) (*redis.Client, error) {
	options := cfg.Options()
	if cfg.InMemory {
		addr, err := inMemoryAddr()
		if err != nil {
			return nil, err
		}
		options.Addr = addr
	}
	return redis.NewClient(options), nil
}

func inMemoryAddr() (string, error) {
	inMemoryMu.Lock()
	defer inMemoryMu.Unlock()
	if inMemoryServer != nil {
		return inMemoryServer.Addr(), nil
	}
	server, err := miniredis.Run()
	if err != nil {
		return "", err
	}
	inMemoryServer = server
	return server.Addr(), nil
}

func registerClient(lc fx.Lifecycle, client *redis.Client, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			log.Info("redis connected", zap.String("addr", client.Options().Addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
}
