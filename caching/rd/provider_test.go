package rd_test

import (
	"testing"

	"github.com/bronystylecrazy/tokenbus/caching/rd"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/spf13/viper"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestInMemoryClientIsShared(t *testing.T) {
	a, err := rd.NewClient(rd.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	b, err := rd.NewClient(rd.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer a.Close()
	defer b.Close()

	if err := a.Set(t.Context(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := b.Get(t.Context(), "k").Result()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("got=%q want=%q", got, "v")
	}
}

func TestModuleProvidesClient(t *testing.T) {
	v := viper.New()
	v.Set("caching.redis.in_memory", true)
	var client rd.RedisClient

	app := fxtest.New(t,
		fx.Supply(config.FromViper(v)),
		fx.Supply(zap.NewNop()),
		rd.Module(),
		fx.Populate(&client),
	)
	app.RequireStart()
	defer app.RequireStop()

	if _, ok := client.(*redis.Client); !ok {
		t.Fatalf("client type got=%T", client)
	}
	if err := client.Ping(t.Context()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
