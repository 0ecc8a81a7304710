package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

type TwitterHandler struct {
	session service.TwitterSessionManager
	s       service.TwitterService
	resync  service.Resyncer
}

func NewTwitterHandler(session service.TwitterSessionManager, service service.TwitterService, resync service.Resyncer) *TwitterHandler {
	return &TwitterHandler{session: session, s: service, resync: resync}
}

func (h *TwitterHandler) GetConfirmationCode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"awaiting": h.session.AwaitingConfirmationCode(),
	})
}

func (h *TwitterHandler) InputConfirmationCode(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.FormValue("code"))
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "code is required",
		})
	}

	if err := h.session.InputConfirmationCode(c.UserContext(), code); err != nil {
		return errorResponse(c, err)
	}

	if h.session.State() == service.SessionLoggedIn {
		h.resync.Resync(context.Background(), models.PlatformTwitter)
	}

	return c.JSON(fiber.Map{
		"state": h.session.State().String(),
	})
}

func (h *TwitterHandler) Screenshot(c *fiber.Ctx) error {
	path, err := h.s.Screenshot(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"path": path,
	})
}
