package web

import (
	"context"
	"fmt"
	"net"

	"github.com/bronystylecrazy/tokenbus/build"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewFiberApp(config Config, log *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      buildAppName(config.Name),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		ErrorHandler: ErrorHandler(log),
	})
}

func buildAppName(name string) string {
	if name == "" {
		name = build.Name
	}
	return fmt.Sprintf("%s (%s %s %s)", name, build.Version, build.Commit, build.BuildDate)
}

// RegisterFiberApp binds the listener during start so a taken port fails
// startup instead of being logged from a goroutine.
func RegisterFiberApp(lc fx.Lifecycle, app *fiber.App, log *zap.Logger, config Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
			ln, err := new(net.ListenConfig).Listen(ctx, "tcp", addr)
			if err != nil {
				return fmt.Errorf("web: listen %s: %w", addr, err)
			}
			log.Info("http listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}
