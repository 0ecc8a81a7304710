package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/service"
)

type AuthMiddleware struct {
	s   service.AuthService
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config, service service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{s: service, cfg: cfg}
}

func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(m.cfg.SessionCookieName)

		session, err := m.s.ValidateSession(c.Context(), token)
		if err != nil {
			var authErr *service.AuthError
			if !errors.As(err, &authErr) {
				log.Printf("Session lookup failed: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "something went wrong",
				})
			}

			if token != "" {
				c.Cookie(&fiber.Cookie{
					Name:   m.cfg.SessionCookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1, // Delete cookie
				})
			}

			return c.Status(authErr.Status).JSON(fiber.Map{
				"error": authErr.Message,
			})
		}

		c.Locals("session", session)
		return c.Next()
	}
}
