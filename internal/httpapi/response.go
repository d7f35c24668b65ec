// Package httpapi implements the Fiber adapter exposing the orchestrator's
// REST surface and WebSocket event channel (spec §6).
package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"symposium/internal/domain"
)

// envelope wraps every JSON response in the success/error shape spec §7
// requires of HTTP responses ("a boolean success flag and an error
// string").
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(envelope{Success: true, Data: data})
}

// errorHandler is installed as fiber.Config.ErrorHandler, mapping domain
// sentinel errors to HTTP status the same way the teacher's
// mapErrorToHTTP/handleError pair does, but emitting the success/error
// envelope instead of the teacher's bare {"error","code"} body.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message := mapError(err)
		if status == fiber.StatusInternalServerError {
			logger.Error("unmapped error in httpapi", "error", err, "path", c.Path())
		}
		return c.Status(status).JSON(envelope{Success: false, Error: message})
	}
}

func mapError(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "resource not found"
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrProvider):
		return fiber.StatusBadGateway, err.Error()
	case errors.Is(err, domain.ErrPersistence):
		return fiber.StatusInternalServerError, "storage error"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
