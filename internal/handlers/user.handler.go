package handlers

import (
	"findmyspot/internal/app"
	userController "findmyspot/internal/controllers/users"
	"findmyspot/internal/handlers/middleware"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	Handler
	userController userController.UserControllerInterface
}

func NewUserHandler(app app.App, router fiber.Router) *UserHandler {
	return &UserHandler{
		Handler:        newHandler(app, router, "user_handler"),
		userController: app.Controllers.User,
	}
}

func (h *UserHandler) Register() {
	users := h.router.Group("/users", h.middleware.RequireAuth())
	users.Get("/me", h.getCurrentUser)
}

func (h *UserHandler) getCurrentUser(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return unauthorized(c)
	}

	response, err := h.userController.GetProfile(c.UserContext(), user)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(response)
}
