package realtime

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/lifecycle"
	usmqtt "github.com/bronystylecrazy/tokenbus/realtime/mqtt"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/realtime",
		config.Provide[Config]("realtime"),
		fx.Provide(NewBroker),
		fx.Invoke(func(lc fx.Lifecycle, b usmqtt.Broker) {
			lifecycle.Append(lc, b)
		}),
	)
}
