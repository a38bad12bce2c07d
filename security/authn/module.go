package authn

import (
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/bronystylecrazy/tokenbus/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type authenticatorParams struct {
	fx.In

	Requester *validation.Requester
	Verifier  *token.Verifier `optional:"true"`
	Log       *zap.Logger
}

func newAuthenticator(p authenticatorParams) *Authenticator {
	return New(p.Requester, p.Verifier, p.Log)
}

func Module() fx.Option {
	return fx.Module("tokenbus/authn",
		fx.Provide(newAuthenticator),
	)
}
