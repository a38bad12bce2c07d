package validation

import (
	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/config"
	"github.com/bronystylecrazy/tokenbus/lifecycle"
	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the Config and Codec shared by both sides.
func Module() fx.Option {
	return fx.Module("tokenbus/validation",
		config.Provide[Config]("validation"),
		fx.Provide(func(cfg Config) (Codec, error) { return NewCodec(cfg.Codec) }),
	)
}

// RequesterModule wires Validate for a calling service: the registry, the
// requester and the response listener bound to the app lifecycle.
func RequesterModule() fx.Option {
	return fx.Module("tokenbus/validation/requester",
		fx.Provide(
			NewRegistry,
			func(t bus.Transport, reg *Registry, codec Codec, cfg Config, log *zap.Logger) *Requester {
				return NewRequester(t, reg, codec, cfg, log)
			},
			func(t bus.Transport, reg *Registry, codec Codec, cfg Config, common bus.Config, log *zap.Logger) *Listener {
				return NewListener(t, reg, codec, cfg, log, bus.WithBackoff(common.Backoff))
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, l *Listener) { lifecycle.Append(lc, l) }),
	)
}

// ResponderModule wires the answering side for the issuing service.
func ResponderModule() fx.Option {
	return fx.Module("tokenbus/validation/responder",
		fx.Provide(func(t bus.Transport, store revocation.Store, v *token.Verifier, codec Codec, cfg Config, common bus.Config, log *zap.Logger) *Responder {
			return NewResponder(t, store, v, codec, cfg, log, bus.WithBackoff(common.Backoff))
		}),
		fx.Invoke(func(lc fx.Lifecycle, r *Responder) { lifecycle.Append(lc, r) }),
	)
}
