package web

import (
	"fmt"

	fiberzap "github.com/gofiber/contrib/v3/zap"
	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestTelemetry opens a server span per request and logs each request
// with its trace id. It runs before every other handler.
type RequestTelemetry struct {
	tracer trace.Tracer
	log    *zap.Logger
}

func NewRequestTelemetry(log *zap.Logger) *RequestTelemetry {
	return &RequestTelemetry{
		tracer: otel.Tracer("github.com/bronystylecrazy/tokenbus/web"),
		log:    log.Named("http"),
	}
}

func (t *RequestTelemetry) Priority() int { return Earliest }

func (t *RequestTelemetry) Handle(r fiber.Router) {
	r.Use(t.trace)
	r.Use(fiberzap.New(fiberzap.Config{
		Logger: t.log,
		FieldsFunc: func(c fiber.Ctx) []zap.Field {
			sc := trace.SpanContextFromContext(c.Context())
			if !sc.IsValid() {
				return nil
			}
			return []zap.Field{zap.String("trace_id", sc.TraceID().String())}
		},
	}))
}

func (t *RequestTelemetry) trace(c fiber.Ctx) error {
	ctx, span := t.tracer.Start(c.Context(), fmt.Sprintf("%s %s", c.Method(), c.Path()),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", c.Method()),
			attribute.String("url.path", c.Path()),
		),
	)
	defer span.End()
	c.SetContext(ctx)

	err := c.Next()
	status := c.Response().StatusCode()
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil || status >= fiber.StatusInternalServerError {
		span.SetStatus(codes.Error, fmt.Sprint(status))
	}
	return err
}
