package gateway

import (
	"github.com/bronystylecrazy/tokenbus/web"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/gateway",
		web.AsHandler(NewOrdersHandler),
	)
}
