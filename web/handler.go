package web

import (
	"slices"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

const HandlersGroupName = "web.handlers"

// Handler mounts routes or middleware on the app.
type Handler interface {
	Handle(r fiber.Router)
}

// Prioritized handlers run in ascending order; the rest count as Normal.
type Prioritized interface {
	Priority() int
}

const (
	Earliest = -200
	Normal   = 0
	Latest   = 200
)

type HandlerFunc func(r fiber.Router)

func (f HandlerFunc) Handle(r fiber.Router) { f(r) }

// AsHandler registers constructor's result in the handler group.
func AsHandler(constructor any) fx.Option {
	return fx.Provide(fx.Annotate(constructor, fx.As(new(Handler)), fx.ResultTags(`group:"`+HandlersGroupName+`"`)))
}

func priorityOf(h Handler) int {
	if p, ok := h.(Prioritized); ok {
		return p.Priority()
	}
	return Normal
}

type setupHandlersIn struct {
	fx.In
	App      *fiber.App
	Handlers []Handler `group:"web.handlers"`
}

func SetupHandlers(in setupHandlersIn) {
	ordered := slices.Clone(in.Handlers)
	slices.SortStableFunc(ordered, func(a, b Handler) int {
		return priorityOf(a) - priorityOf(b)
	})
	for _, h := range ordered {
		h.Handle(in.App)
	}
}
