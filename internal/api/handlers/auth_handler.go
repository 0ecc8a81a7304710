package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/service"
)

const (
	stateCookieName = "discord_oauth_state"
	sessionTTL      = 24 * time.Hour
)

type AuthHandler struct {
	s   service.AuthService
	cfg config.Config
}

func NewAuthHandler(cfg config.Config, service service.AuthService) *AuthHandler {
	return &AuthHandler{s: service, cfg: cfg}
}

func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	if token := c.Cookies(h.cfg.SessionCookieName); token != "" {
		if _, err := h.s.ValidateSession(c.UserContext(), token); err == nil {
			return c.Redirect("/")
		}
	}

	state, err := h.s.NewState()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		HTTPOnly: true,
		Secure:   h.cfg.Production,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(service.StateTTL),
	})

	return c.Redirect(h.s.AuthURL(state))
}

func (h *AuthHandler) ValidateOAuth(c *fiber.Ctx) error {
	cookieState := c.Cookies(stateCookieName)
	c.ClearCookie(stateCookieName)

	session, err := h.s.ValidateCallback(c.UserContext(), c.Query("code"), c.Query("state"), cookieState)
	if err != nil {
		return errorResponse(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    session.Token,
		HTTPOnly: true,
		Secure:   h.cfg.Production,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
	})

	return c.Redirect("/")
}

func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:   h.cfg.SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return c.Redirect("/sign-in")
}
