package identity

import (
	"github.com/bronystylecrazy/tokenbus/web"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/identity",
		web.AsHandler(NewAuthHandler),
	)
}
