package otel

import (
	"context"
	"os"

	"github.com/bronystylecrazy/tokenbus/build"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

func NewResource(ctx context.Context, config Config) (*resource.Resource, error) {
	hostName, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceNamespace(config.Namespace),
			semconv.ServiceVersion(build.Version),
			semconv.DeploymentEnvironmentName(build.Mode),
			semconv.HostName(hostName),
		),
	)
}
