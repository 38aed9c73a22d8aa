package handlers

import (
	"findmyspot/internal/app"
	adminController "findmyspot/internal/controllers/admin"
	"findmyspot/internal/handlers/middleware"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Handler
	adminController adminController.AdminControllerInterface
}

func NewAdminHandler(app app.App, router fiber.Router) *AdminHandler {
	return &AdminHandler{
		Handler:         newHandler(app, router, "admin_handler"),
		adminController: app.Controllers.Admin,
	}
}

func (h *AdminHandler) Register() {
	admin := h.router.Group("/admin", h.middleware.RequireAuth(), h.middleware.RequireAdmin())

	jobs := admin.Group("/jobs")
	jobs.Get("/", h.listJobs)
	jobs.Post("/:name/trigger", h.triggerJob)
}

func (h *AdminHandler) listJobs(c *fiber.Ctx) error {
	return c.JSON(h.adminController.ListJobs(c.UserContext()))
}

func (h *AdminHandler) triggerJob(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("triggerJob")

	user := middleware.GetUser(c)
	name := c.Params("name")
	log.Info("Admin triggered job", "userID", user.ID, "job", name)

	response, err := h.adminController.TriggerJob(c.UserContext(), name)
	if err != nil {
		return h.handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(response)
}
