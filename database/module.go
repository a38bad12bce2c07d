package database

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/database",
		config.Provide[Config]("db"),
		fx.Provide(NewDialector, NewGormDB),
		fx.Invoke(UseOtel, registerDB),
	)
}
