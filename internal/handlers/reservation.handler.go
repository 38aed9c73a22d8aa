package handlers

import (
	"context"

	"findmyspot/internal/app"
	reservationController "findmyspot/internal/controllers/reservations"
	"findmyspot/internal/handlers/middleware"
	"findmyspot/internal/models"
	"findmyspot/internal/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultHistoryLimit = 20

type ReservationHandler struct {
	Handler
	reservationController reservationController.ReservationControllerInterface
}

func NewReservationHandler(app app.App, router fiber.Router) *ReservationHandler {
	return &ReservationHandler{
		Handler:               newHandler(app, router, "reservation_handler"),
		reservationController: app.Controllers.Reservation,
	}
}

func (h *ReservationHandler) Register() {
	reservations := h.router.Group("/reservations", h.middleware.RequireAuth())

	reservations.Post("/", h.createReservation)
	reservations.Get("/active", h.getActiveReservation)
	reservations.Get("/history", h.getHistory)
	reservations.Post("/:id/confirm", h.confirmArrival)
	reservations.Post("/:id/cancel", h.cancelReservation)
	reservations.Post("/:id/complete", h.completeReservation)
}

func (h *ReservationHandler) createReservation(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("createReservation")

	user := middleware.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	var req types.CreateReservationRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warn("Invalid request body", "error", err)
		return badRequest(c, "Invalid request body")
	}

	reservation, err := h.reservationController.Create(c.UserContext(), user, &req)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reservation)
}

func (h *ReservationHandler) getActiveReservation(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	reservation, err := h.reservationController.GetActive(c.UserContext(), user)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(fiber.Map{"reservation": reservation})
}

func (h *ReservationHandler) getHistory(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return badRequest(c, "limit must not be negative")
	}

	history, err := h.reservationController.History(c.UserContext(), user, limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(fiber.Map{"history": history})
}

func (h *ReservationHandler) confirmArrival(c *fiber.Ctx) error {
	return h.transition(c, h.reservationController.Confirm)
}

func (h *ReservationHandler) cancelReservation(c *fiber.Ctx) error {
	return h.transition(c, h.reservationController.Cancel)
}

func (h *ReservationHandler) completeReservation(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	reservationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid reservation id")
	}

	history, err := h.reservationController.Complete(c.UserContext(), user, reservationID)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(history)
}

type reservationTransition func(
	ctx context.Context,
	user *models.User,
	reservationID uuid.UUID,
) (*types.ReservationView, error)

func (h *ReservationHandler) transition(c *fiber.Ctx, apply reservationTransition) error {
	user := middleware.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	reservationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid reservation id")
	}

	reservation, err := apply(c.UserContext(), user, reservationID)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(reservation)
}
