// Package gateway is a sample consuming service: order routes that trust a
// caller only after the issuing service has confirmed its credential.
package gateway

import (
	"github.com/bronystylecrazy/tokenbus/security/authn"
	"github.com/bronystylecrazy/tokenbus/web"
	"github.com/gofiber/fiber/v3"
)

const RoleAdmin = "Admin"

type OrdersHandler struct {
	auth *authn.Authenticator
}

func NewOrdersHandler(auth *authn.Authenticator) *OrdersHandler {
	return &OrdersHandler{auth: auth}
}

func (h *OrdersHandler) Handle(r fiber.Router) {
	orders := r.Group("/api/orders", h.auth.Handler())
	orders.Get("/me", h.mine)
	orders.Get("/", authn.RequireRole(RoleAdmin), h.all)
}

// Order persistence lives elsewhere; these routes only report who asked.
func (h *OrdersHandler) mine(c fiber.Ctx) error {
	p, ok := authn.PrincipalFromContext(c.Context())
	if !ok {
		return web.Unauthorized(c, "")
	}
	return c.JSON(fiber.Map{
		"subjectId": p.Subject,
		"role":      p.Role,
		"orders":    []any{},
	})
}

func (h *OrdersHandler) all(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"orders": []any{}})
}
