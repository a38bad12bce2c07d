package revocation

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/bronystylecrazy/tokenbus/caching/rd"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/lifecycle"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type storeParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	Redis     rd.RedisClient   `optional:"true"`
	DB        *gorm.DB         `optional:"true"`
	Dynamo    *dynamodb.Client `optional:"true"`
}

// NewStore picks the backend named in the config. The persistent backends
// need their client modules in the graph.
func NewStore(p storeParams) (Store, error) {
	switch p.Config.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		if p.Redis == nil {
			return nil, errors.New("revocation: redis backend needs caching.redis")
		}
		return NewRedisStore(p.Redis, p.Config.KeyPrefix), nil
	case BackendDatabase:
		if p.DB == nil {
			return nil, errors.New("revocation: database backend needs db")
		}
		return NewGormStore(p.DB), nil
	case BackendDynamo:
		if p.Dynamo == nil {
			return nil, errors.New("revocation: dynamodb backend needs aws")
		}
		store := NewDynamoStore(p.Dynamo, p.Config.Dynamo.Table)
		if p.Config.Dynamo.CreateTable {
			lifecycle.Append(p.Lifecycle, store)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("revocation: unknown backend %q", p.Config.Backend)
	}
}

func registerSweeper(lc fx.Lifecycle, cfg Config, store Store, log *zap.Logger) {
	if cfg.SweepSchedule == "" {
		return
	}
	lifecycle.Append(lc, NewSweeper(store, cfg.SweepSchedule, log))
}

func Module() fx.Option {
	return fx.Module("tokenbus/revocation",
		config.Provide[Config]("revocation"),
		fx.Provide(NewStore),
		fx.Invoke(registerSweeper),
	)
}

// DynamoModule provides the DynamoDB client for BackendDynamo. It expects
// awscfg.Module in the same graph.
func DynamoModule() fx.Option {
	return fx.Module("tokenbus/revocation/dynamodb",
		fx.Provide(func(cfg aws.Config) *dynamodb.Client { return dynamodb.NewFromConfig(cfg) }),
	)
}
