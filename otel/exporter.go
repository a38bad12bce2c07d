package otel

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

func gzip(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "gzip")
}

// NewMetricExporter returns nil when metrics export is disabled.
func NewMetricExporter(ctx context.Context, config Config) (sdkmetric.Exporter, error) {
	if !config.signalEnabled(config.Metrics.Exporter) {
		return nil, nil
	}
	otlp := config.OTLP
	tlsCfg, err := otlp.TLS.Load()
	if err != nil {
		return nil, err
	}
	if otlp.useHTTP() {
		endpoint, path := otlp.httpEndpoint()
		options := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithTimeout(otlp.Timeout),
		}
		if gzip(otlp.Compression) {
			options = append(options, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		if path != "" {
			options = append(options, otlpmetrichttp.WithURLPath(path))
		}
		if len(otlp.Headers) > 0 {
			options = append(options, otlpmetrichttp.WithHeaders(otlp.Headers))
		}
		if otlp.Insecure {
			options = append(options, otlpmetrichttp.WithInsecure())
		} else if tlsCfg != nil {
			options = append(options, otlpmetrichttp.WithTLSClientConfig(tlsCfg))
		}
		return otlpmetrichttp.New(ctx, options...)
	}

	options := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(otlp.grpcEndpoint()),
		otlpmetricgrpc.WithTimeout(otlp.Timeout),
	}
	if gzip(otlp.Compression) {
		options = append(options, otlpmetricgrpc.WithCompressor("gzip"))
	}
	if len(otlp.Headers) > 0 {
		options = append(options, otlpmetricgrpc.WithHeaders(otlp.Headers))
	}
	if otlp.Insecure {
		options = append(options, otlpmetricgrpc.WithInsecure())
	} else if tlsCfg != nil {
		options = append(options, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
	}
	return otlpmetricgrpc.New(ctx, options...)
}

// NewTraceExporter returns nil when trace export is disabled.
func NewTraceExporter(ctx context.Context, config Config) (sdktrace.SpanExporter, error) {
	if !config.signalEnabled(config.Traces.Exporter) {
		return nil, nil
	}
	otlp := config.OTLP
	tlsCfg, err := otlp.TLS.Load()
	if err != nil {
		return nil, err
	}
	if otlp.useHTTP() {
		endpoint, path := otlp.httpEndpoint()
		options := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithTimeout(otlp.Timeout),
		}
		if gzip(otlp.Compression) {
			options = append(options, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		if path != "" {
			options = append(options, otlptracehttp.WithURLPath(path))
		}
		if len(otlp.Headers) > 0 {
			options = append(options, otlptracehttp.WithHeaders(otlp.Headers))
		}
		if otlp.Insecure {
			options = append(options, otlptracehttp.WithInsecure())
		} else if tlsCfg != nil {
			options = append(options, otlptracehttp.WithTLSClientConfig(tlsCfg))
		}
		return otlptracehttp.New(ctx, options...)
	}

	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(otlp.grpcEndpoint()),
		otlptracegrpc.WithTimeout(otlp.Timeout),
	}
	if gzip(otlp.Compression) {
		options = append(options, otlptracegrpc.WithCompressor("gzip"))
	}
	if len(otlp.Headers) > 0 {
		options = append(options, otlptracegrpc.WithHeaders(otlp.Headers))
	}
	if otlp.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	} else if tlsCfg != nil {
		options = append(options, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
	}
	return otlptracegrpc.New(ctx, options...)
}

// NewLogExporter returns nil when log export is disabled.
func NewLogExporter(ctx context.Context, config Config) (sdklog.Exporter, error) {
	if !config.signalEnabled(config.Logs.Exporter) {
		return nil, nil
	}
	otlp := config.OTLP
	tlsCfg, err := otlp.TLS.Load()
	if err != nil {
		return nil, err
	}
	if otlp.useHTTP() {
		endpoint, path := otlp.httpEndpoint()
		options := []otlploghttp.Option{
			otlploghttp.WithEndpoint(endpoint),
			otlploghttp.WithTimeout(otlp.Timeout),
		}
		if gzip(otlp.Compression) {
			options = append(options, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		}
		if path != "" {
			options = append(options, otlploghttp.WithURLPath(path))
		}
		if len(otlp.Headers) > 0 {
			options = append(options, otlploghttp.WithHeaders(otlp.Headers))
		}
		if otlp.Insecure {
			options = append(options, otlploghttp.WithInsecure())
		} else if tlsCfg != nil {
			options = append(options, otlploghttp.WithTLSClientConfig(tlsCfg))
		}
		return otlploghttp.New(ctx, options...)
	}

	options := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(otlp.grpcEndpoint()),
		otlploggrpc.WithTimeout(otlp.Timeout),
	}
	if gzip(otlp.Compression) {
		options = append(options, otlploggrpc.WithCompressor("gzip"))
	}
	if len(otlp.Headers) > 0 {
		options = append(options, otlploggrpc.WithHeaders(otlp.Headers))
	}
	if otlp.Insecure {
		options = append(options, otlploggrpc.WithInsecure())
	} else if tlsCfg != nil {
		options = append(options, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
	}
	return otlploggrpc.New(ctx, options...)
}
