package web

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/web",
		config.Provide[Config]("http"),
		fx.Provide(NewFiberApp),
		AsHandler(NewRequestTelemetry),
		AsHandler(NewHealthHandler),
		fx.Invoke(SetupHandlers, RegisterFiberApp),
	)
}
