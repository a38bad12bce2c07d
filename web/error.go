package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type Error struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

func respond(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Error{
		Error:     ErrorDetail{Code: code, Message: message},
		RequestID: c.Get(fiber.HeaderXRequestID),
	})
}

func Unauthorized(c fiber.Ctx, message string) error {
	if message == "" {
		message = "unauthorized"
	}
	return respond(c, fiber.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(c fiber.Ctx, message string) error {
	if message == "" {
		message = "forbidden"
	}
	return respond(c, fiber.StatusForbidden, "FORBIDDEN", message)
}

func BadRequest(c fiber.Ctx, message string) error {
	return respond(c, fiber.StatusBadRequest, "BAD_REQUEST", message)
}

// ErrorHandler renders every unhandled error as an Error body. Internal
// details are logged, never returned.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return respond(c, fe.Code, codeOf(fe.Code), fe.Message)
		}
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return respond(c, fiber.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func codeOf(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "TOO_LARGE"
	default:
		return "ERROR"
	}
}
