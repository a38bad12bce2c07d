package mqttbus

import (
	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/config"
	usmqtt "github.com/bronystylecrazy/tokenbus/realtime/mqtt"
	"go.uber.org/fx"
)

type Config struct {
	Buffer int `mapstructure:"buffer" default:"64" validate:"gte=0"`
}

// Module provides a bus.Transport over the realtime broker. It expects
// realtime.Module and bus.Module in the same graph.
func Module() fx.Option {
	return fx.Module("tokenbus/bus/mqtt",
		config.Provide[Config]("bus.mqtt"),
		fx.Provide(func(broker usmqtt.Broker, cfg Config, common bus.Config) bus.Transport {
			return bus.WithPublishTimeout(New(broker, cfg.Buffer), common.PublishTimeout)
		}),
	)
}
