package log

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/log",
		config.Provide[Config]("log"),
		fx.Provide(NewZapLogger, NewSlog),
		fx.WithLogger(NewEventLogger),
		fx.Invoke(WatchLevel),
	)
}
