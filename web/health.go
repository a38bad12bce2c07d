package web

import (
	"github.com/bronystylecrazy/tokenbus/build"
	"github.com/gofiber/fiber/v3"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (HealthHandler) Handle(r fiber.Router) {
	r.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": build.Name,
			"version": build.Version,
			"mode":    build.Mode,
		})
	})
}
