package handlers

import (
	"findmyspot/internal/app"
	spotController "findmyspot/internal/controllers/spots"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SpotHandler struct {
	Handler
	spotController spotController.SpotControllerInterface
}

func NewSpotHandler(app app.App, router fiber.Router) *SpotHandler {
	return &SpotHandler{
		Handler:        newHandler(app, router, "spot_handler"),
		spotController: app.Controllers.Spot,
	}
}

func (h *SpotHandler) Register() {
	spots := h.router.Group("/spots", h.middleware.RequireAuth())
	spots.Get("/", h.listSpots)
	spots.Get("/:id", h.getSpot)
}

func (h *SpotHandler) listSpots(c *fiber.Ctx) error {
	spots, err := h.spotController.List(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(fiber.Map{"spots": spots})
}

func (h *SpotHandler) getSpot(c *fiber.Ctx) error {
	spotID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid parking spot id")
	}

	spot, err := h.spotController.Get(c.UserContext(), spotID)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(spot)
}
