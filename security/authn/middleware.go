// Package authn authorizes inbound HTTP requests of a consuming service by
// asking the issuing service about the bearer credential over the bus.
package authn

import (
	"context"
	"slices"

	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/bronystylecrazy/tokenbus/validation"
	"github.com/bronystylecrazy/tokenbus/web"
	jwtware "github.com/gofiber/contrib/v3/jwt"
	"github.com/gofiber/fiber/v3"
	fiberextractors "github.com/gofiber/fiber/v3/extractors"
	"go.uber.org/zap"
)

// Validator is satisfied by *validation.Requester.
type Validator interface {
	Validate(ctx context.Context, credential string) validation.Outcome
}

type Authenticator struct {
	validator Validator
	verifier  *token.Verifier
	extractor fiberextractors.Extractor
	log       *zap.Logger
}

// New builds an Authenticator. verifier may be nil, in which case every
// credential goes to the bus without a local signature check.
func New(validator Validator, verifier *token.Verifier, log *zap.Logger) *Authenticator {
	return &Authenticator{
		validator: validator,
		verifier:  verifier,
		extractor: fiberextractors.FromAuthHeader("Bearer"),
		log:       log.Named("authn"),
	}
}

// Handler rejects the request with 401 unless the issuing service confirms
// the credential. On success the Principal is available from both the
// request context and fiber locals.
func (a *Authenticator) Handler() fiber.Handler {
	if a.verifier == nil {
		return func(c fiber.Ctx) error {
			raw, err := a.extractor.Extract(c)
			if err != nil || raw == "" {
				return web.Unauthorized(c, "missing bearer credential")
			}
			return a.confirm(c, raw)
		}
	}
	return jwtware.New(jwtware.Config{
		KeyFunc:   a.verifier.Keyfunc,
		Extractor: a.extractor,
		SuccessHandler: func(c fiber.Ctx) error {
			t := jwtware.FromContext(c)
			if t == nil {
				return web.Unauthorized(c, "")
			}
			return a.confirm(c, t.Raw)
		},
		ErrorHandler: func(c fiber.Ctx, err error) error {
			a.log.Debug("local credential check failed", zap.Error(err))
			return web.Unauthorized(c, "")
		},
	})
}

func (a *Authenticator) confirm(c fiber.Ctx, raw string) error {
	o := a.validator.Validate(c.Context(), raw)
	if !o.Valid {
		a.log.Debug("credential rejected", zap.String("status", o.Status))
		return web.Unauthorized(c, o.Status)
	}
	setPrincipal(c, &Principal{Subject: o.SubjectID, Role: o.Role, Credential: raw})
	return c.Next()
}

// RequireRole must run after Handler. A request whose principal carries none
// of roles gets 403.
func RequireRole(roles ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		p, ok := PrincipalFromLocals(c)
		if !ok {
			return web.Unauthorized(c, "")
		}
		if !slices.Contains(roles, p.Role) {
			return web.Forbidden(c, "")
		}
		return c.Next()
	}
}
