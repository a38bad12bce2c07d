package authn

import (
	"context"

	"github.com/gofiber/fiber/v3"
)

// Principal is the caller as the issuing service described it.
type Principal struct {
	Subject    string `json:"subject"`
	Role       string `json:"role,omitempty"`
	Credential string `json:"-"`
}

type principalContextKey struct{}

const principalLocalsKey = "tokenbus.authn.principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	v := ctx.Value(principalContextKey{})
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

func SetPrincipalLocals(c fiber.Ctx, p *Principal) {
	c.Locals(principalLocalsKey, p)
}

func PrincipalFromLocals(c fiber.Ctx) (*Principal, bool) {
	v := c.Locals(principalLocalsKey)
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

func setPrincipal(c fiber.Ctx, p *Principal) {
	c.SetContext(WithPrincipal(c.Context(), p))
	SetPrincipalLocals(c, p)
}
