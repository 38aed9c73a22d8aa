package handlers

import (
	"errors"

	"findmyspot/internal/services"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{services.ErrNotFound, fiber.StatusNotFound, "Not found"},
	{services.ErrUnauthorized, fiber.StatusUnauthorized, "Authentication failed"},
	{services.ErrConflict, fiber.StatusConflict, "An active reservation already exists"},
	{services.ErrCapacityExceeded, fiber.StatusConflict, "No free spaces in this basement"},
	{services.ErrInvalidState, fiber.StatusConflict, "Reservation is not in a valid state for this action"},
	{services.ErrTimeout, fiber.StatusGatewayTimeout, "The operation timed out, please retry"},
	{services.ErrInconsistentState, fiber.StatusInternalServerError, "Reservation state needs manual reconciliation"},
	{services.ErrTransport, fiber.StatusInternalServerError, "Service temporarily unavailable"},
}

// handleError writes the JSON error response for a service error. Unknown
// errors become a 500 without leaking their text.
func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("handleError")

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.err) {
			if mapping.status >= fiber.StatusInternalServerError {
				log.Er("request failed", err, "path", c.Path())
				return c.Status(mapping.status).JSON(fiber.Map{"error": mapping.message})
			}
			return c.Status(mapping.status).JSON(fiber.Map{
				"error":   mapping.message,
				"details": mapping.err.Error(),
			})
		}
	}

	log.Er("unhandled request error", err, "path", c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "Authentication required",
	})
}
