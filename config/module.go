package config

import "go.uber.org/fx"

func Module(opts Options) fx.Option {
	return fx.Module("tokenbus/config",
		fx.Supply(opts),
		fx.Provide(Load),
	)
}

// Provide exposes the section under key as a T.
func Provide[T any](key string) fx.Option {
	return fx.Provide(func(s *Source) (T, error) {
		return Decode[T](s, key)
	})
}
