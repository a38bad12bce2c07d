package otel

import (
	"context"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type MeterProvider struct {
	*sdkmetric.MeterProvider
}

// NewMeterProvider installs the provider globally. Without an exporter the
// provider has no reader and every instrument is effectively a no-op.
func NewMeterProvider(res *resource.Resource, exporter sdkmetric.Exporter, config Config) *MeterProvider {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.Metrics.Interval)),
		))
	}
	mp := &MeterProvider{sdkmetric.NewMeterProvider(opts...)}
	otel.SetMeterProvider(mp.MeterProvider)
	return mp
}

func (mp *MeterProvider) Stop(ctx context.Context) error {
	return mp.Shutdown(ctx)
}

type TracerProvider struct {
	*sdktrace.TracerProvider
}

func NewTracerProvider(res *resource.Resource, exporter sdktrace.SpanExporter) *TracerProvider {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := &TracerProvider{sdktrace.NewTracerProvider(opts...)}
	otel.SetTracerProvider(tp.TracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

func (tp *TracerProvider) Stop(ctx context.Context) error {
	return tp.Shutdown(ctx)
}

type LoggerProvider struct {
	*sdklog.LoggerProvider
	enabled bool
}

func NewLoggerProvider(res *resource.Resource, exporter sdklog.Exporter) *LoggerProvider {
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	if exporter != nil {
		opts = append(opts, sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))
	}
	return &LoggerProvider{LoggerProvider: sdklog.NewLoggerProvider(opts...), enabled: exporter != nil}
}

func (lp *LoggerProvider) Stop(ctx context.Context) error {
	return lp.Shutdown(ctx)
}

// AttachLogger tees zap output into the OTLP log pipeline when log export is on.
func AttachLogger(log *zap.Logger, lp *LoggerProvider, config Config) *zap.Logger {
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warn("otel error", zap.Error(err))
	}))
	if !lp.enabled {
		return log
	}
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, otelzap.NewCore(config.ServiceName, otelzap.WithLoggerProvider(lp)))
	}))
}

func registerStops(lc fx.Lifecycle, mp *MeterProvider, tp *TracerProvider, lp *LoggerProvider) {
	lc.Append(fx.StopHook(mp.Stop))
	lc.Append(fx.StopHook(tp.Stop))
	lc.Append(fx.StopHook(lp.Stop))
}
