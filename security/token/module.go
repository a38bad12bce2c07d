package token

import (
	"context"

	"github.com/bronystylecrazy/tokenbus/config"
	"go.uber.org/fx"
)

// LoadVerifier prefers static key material and falls back to JWKSURL.
func LoadVerifier(cfg Config) (*Verifier, error) {
	if cfg.JWKSURL != "" && cfg.PublicKey == "" && cfg.PublicKeyFile == "" && cfg.algorithm() == AlgRS256 {
		return FetchVerifier(context.Background(), cfg, cfg.JWKSURL)
	}
	return NewVerifier(cfg)
}

// Module provides a Verifier for services that only check credentials.
func Module() fx.Option {
	return fx.Module("tokenbus/security/token",
		config.Provide[Config]("token"),
		fx.Provide(LoadVerifier),
	)
}

// IssuerModule provides an Issuer and the matching Verifier for the service
// that mints credentials.
func IssuerModule() fx.Option {
	return fx.Module("tokenbus/security/token/issuer",
		config.Provide[Config]("token"),
		fx.Provide(
			NewIssuer,
			(*Issuer).Verifier,
		),
	)
}
