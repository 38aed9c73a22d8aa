package handlers

import (
	"strings"

	"findmyspot/internal/app"
	authController "findmyspot/internal/controllers/auth"
	"findmyspot/internal/types"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Handler
	authController authController.AuthControllerInterface
}

func NewAuthHandler(app app.App, router fiber.Router) *AuthHandler {
	return &AuthHandler{
		Handler:        newHandler(app, router, "auth_handler"),
		authController: app.Controllers.Auth,
	}
}

func (h *AuthHandler) Register() {
	auth := h.router.Group("/auth")

	auth.Get("/config", h.getAuthConfig)
	auth.Post("/session", h.createSession)
}

func (h *AuthHandler) getAuthConfig(c *fiber.Ctx) error {
	return c.JSON(h.authController.GetAuthConfig())
}

// createSession verifies the ID token from the body, or the bearer header
// when the body is empty, and returns the synced user profile.
func (h *AuthHandler) createSession(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("createSession")

	var req types.SessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			log.Warn("Invalid request body", "error", err)
			return badRequest(c, "Invalid request body")
		}
	}

	if req.IDToken == "" {
		req.IDToken = strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))
	}

	response, err := h.authController.CreateSession(c.UserContext(), req.IDToken)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.JSON(response)
}
