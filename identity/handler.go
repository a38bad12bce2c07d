// Package identity is the HTTP surface of the issuing service.
package identity

import (
	"errors"

	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"github.com/bronystylecrazy/tokenbus/web"
	"github.com/gofiber/fiber/v3"
	fiberextractors "github.com/gofiber/fiber/v3/extractors"
	"go.uber.org/zap"
)

type AuthHandler struct {
	store     revocation.Store
	verifier  *token.Verifier
	extractor fiberextractors.Extractor
	log       *zap.Logger
}

func NewAuthHandler(store revocation.Store, verifier *token.Verifier, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		store:     store,
		verifier:  verifier,
		extractor: fiberextractors.FromAuthHeader("Bearer"),
		log:       log.Named("identity"),
	}
}

func (h *AuthHandler) Handle(r fiber.Router) {
	r.Post("/api/auth/logout", h.logout)
	r.Get("/.well-known/jwks.json", h.jwks)
}

// logout revokes the caller's own bearer credential. Only a credential this
// service would still accept can be revoked.
func (h *AuthHandler) logout(c fiber.Ctx) error {
	raw, err := h.extractor.Extract(c)
	if err != nil || raw == "" {
		return web.Unauthorized(c, "missing bearer credential")
	}
	claims, err := h.verifier.Verify(raw)
	if err != nil {
		return web.Unauthorized(c, "")
	}
	if err := h.store.Revoke(c.Context(), raw); err != nil {
		if errors.Is(err, revocation.ErrMalformedCredential) {
			return web.BadRequest(c, "credential carries no expiry")
		}
		return err
	}
	h.log.Info("credential revoked", zap.String("subject", claims.Subject))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) jwks(c fiber.Ctx) error {
	set, err := h.verifier.JWKS()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.JSON(set)
}
