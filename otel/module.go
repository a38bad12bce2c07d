package otel

import (
	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tokenbus/otel",
		config.Provide[Config]("otel"),
		fx.Provide(
			NewResource,
			NewMetricExporter,
			NewTraceExporter,
			NewLogExporter,
			NewMeterProvider,
			NewTracerProvider,
			NewLoggerProvider,
		),
		fx.Decorate(AttachLogger),
		fx.Invoke(registerStops),
	)
}
