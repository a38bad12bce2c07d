package bus

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

// Module provides the driver-neutral Config. A driver module supplies the
// Transport itself.
func Module() fx.Option {
	return fx.Module("tokenbus/bus",
		config.Provide[Config]("bus"),
	)
}
