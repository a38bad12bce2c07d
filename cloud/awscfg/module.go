package awscfg

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/otel"
	gotel "go.opentelemetry.io/otel"
	"go.uber.org/fx"
)

type params struct {
	fx.In

	Config  Config
	Otel    otel.Config          `optional:"true"`
	Tracing *otel.TracerProvider `optional:"true"`
}

// New loads the SDK config and, with otel enabled, traces every call made by
// clients built from it.
func New(p params) (aws.Config, error) {
	cfg, err := Load(context.Background(), p.Config)
	if err != nil {
		return aws.Config{}, err
	}
	if p.Otel.Enabled && p.Tracing != nil {
		newTracing(p.Tracing, gotel.GetTextMapPropagator()).Append(&cfg.APIOptions)
	}
	return cfg, nil
}

func Module() fx.Option {
	return fx.Module("tokenbus/cloud/aws",
		config.Provide[Config]("aws"),
		fx.Provide(New),
	)
}
