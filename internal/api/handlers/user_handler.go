package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type UserHandler struct {
	twitter service.TwitterSessionManager
	bluesky service.BlueskyService
}

func NewUserHandler(twitter service.TwitterSessionManager, bluesky service.BlueskyService) *UserHandler {
	return &UserHandler{twitter: twitter, bluesky: bluesky}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	session := GetSession(c)
	if session == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "missing session",
		})
	}

	me := transfer.MeResponse{
		ID:       session.ID,
		Username: session.DiscordUsername,
		Twitter: transfer.TwitterStatus{
			Enabled:                  h.twitter.Enabled(),
			State:                    h.twitter.State().String(),
			AwaitingConfirmationCode: h.twitter.AwaitingConfirmationCode(),
			Account:                  h.twitter.Account(),
		},
		Bluesky: transfer.BlueskyStatus{
			Enabled: h.bluesky.Enabled(),
		},
	}
	if me.Bluesky.Enabled {
		me.Bluesky.Account = h.bluesky.Account()
	}

	return c.JSON(me)
}
