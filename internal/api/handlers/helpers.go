package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

func GetSession(c *fiber.Ctx) *models.Session {
	session, _ := c.Locals("session").(*models.Session)
	return session
}

func errorStatus(err error) int {
	var authErr *service.AuthError
	switch {
	case errors.As(err, &authErr):
		return authErr.Status
	case errors.Is(err, service.ErrEmptyComposition),
		errors.Is(err, service.ErrNoServiceSelected),
		errors.Is(err, service.ErrInvalidTweetID),
		errors.Is(err, service.ErrNothingToDelete),
		errors.Is(err, service.ErrUnsupportedMedia),
		errors.Is(err, service.ErrImageTooLarge):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrPlatformDisabled),
		errors.Is(err, service.ErrScreenshotsDisabled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, err error) error {
	message := err.Error()
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		message = authErr.Message
	}
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": message,
	})
}

// parseServices accepts repeated fields as well as comma-separated lists.
func parseServices(values []string) transfer.Services {
	var services transfer.Services
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case models.PlatformTwitter, "x":
				services.Twitter = true
			case models.PlatformBluesky:
				services.Bluesky = true
			}
		}
	}
	return services
}
