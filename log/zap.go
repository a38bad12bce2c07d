package log

import (
	"log/slog"
	"strings"

	"github.com/bronystylecrazy/tokenbus/build"
	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Result struct {
	fx.Out

	Logger *zap.Logger
	Level  zap.AtomicLevel
}

func NewZapLogger(cfg Config) (Result, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	var zapConfig zap.Config
	if useConsole(cfg.Format) {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return FilterFieldsCore(c, cfg.Redact...)
	}))
	if err != nil {
		return Result{}, err
	}
	return Result{Logger: logger, Level: level}, nil
}

func NewEventLogger(log *zap.Logger) fxevent.Logger {
	if build.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
}

// NewSlog bridges slog users (the MQTT broker) onto zap.
func NewSlog(log *zap.Logger, level zap.AtomicLevel) *slog.Logger {
	handler := slogzap.Option{Level: slogLevel(level.Level()), Logger: log}.NewZapHandler()
	return slog.New(handler)
}

func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func useConsole(format string) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	default:
		return build.IsDevelopment()
	}
}

func slogLevel(level zapcore.Level) slog.Level {
	switch level {
	case zapcore.DebugLevel:
		return slog.LevelDebug
	case zapcore.WarnLevel:
		return slog.LevelWarn
	case zapcore.ErrorLevel, zapcore.FatalLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
