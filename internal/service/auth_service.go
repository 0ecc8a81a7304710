package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

const (
	StateTTL         = 10 * time.Minute
	stateNonceBytes  = 100
	sessionTokenSize = 200
)

var discordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/v10/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// discordAPI is the subset of *discordgo.Session used for the member check.
type discordAPI interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	UserGuildMember(guildID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

type AuthService interface {
	// NewState returns a signed, short-lived OAuth state value.
	NewState() (string, error)
	AuthURL(state string) string
	// ValidateCallback checks the returned state against the cookie copy,
	// exchanges the code and admits guild members holding a valid role.
	ValidateCallback(ctx context.Context, code, state, cookieState string) (*models.Session, error)
	ValidateSession(ctx context.Context, token string) (*models.Session, error)
}

type authService struct {
	cfg        config.Config
	sessions   repository.SessionRepository
	oauth      *oauth2.Config
	newDiscord func(tok *oauth2.Token) (discordAPI, error)
}

func NewAuthService(cfg config.Config, sessions repository.SessionRepository) AuthService {
	return newAuthService(cfg, sessions, discordEndpoint, bearerSession)
}

func newAuthService(cfg config.Config, sessions repository.SessionRepository, endpoint oauth2.Endpoint, newDiscord func(*oauth2.Token) (discordAPI, error)) *authService {
	return &authService{
		cfg:      cfg,
		sessions: sessions,
		oauth: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.ServerOrigin + "/validate-oauth",
			Scopes:       []string{"identify", "guilds.members.read"},
			Endpoint:     endpoint,
		},
		newDiscord: newDiscord,
	}
}

func bearerSession(tok *oauth2.Token) (discordAPI, error) {
	return discordgo.New(tok.Type() + " " + tok.AccessToken)
}

func (s *authService) NewState() (string, error) {
	nonce, err := utils.GenerateRandomToken(stateNonceBytes)
	if err != nil {
		return "", err
	}
	return utils.GenerateStateToken(s.cfg.SecretKey, nonce, StateTTL)
}

func (s *authService) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

func (s *authService) ValidateCallback(ctx context.Context, code, state, cookieState string) (*models.Session, error) {
	if code == "" {
		return nil, &AuthError{Status: http.StatusBadRequest, Message: "missing code"}
	}
	if state == "" || state != cookieState {
		return nil, &AuthError{Status: http.StatusBadRequest, Message: "mismatch state"}
	}
	if _, err := utils.ValidateStateToken(s.cfg.SecretKey, state); err != nil {
		return nil, &AuthError{Status: http.StatusBadRequest, Message: "invalid state", Err: err}
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, &AuthError{Status: http.StatusBadRequest, Message: "token exchange failed", Err: err}
	}

	discord, err := s.newDiscord(tok)
	if err != nil {
		return nil, err
	}

	user, err := discord.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return nil, &AuthError{Status: upstreamStatus(err), Message: "discord user lookup failed", Err: err}
	}

	member, err := discord.UserGuildMember(s.cfg.DiscordServerID, discordgo.WithContext(ctx))
	if err != nil {
		if upstreamStatus(err) == http.StatusNotFound {
			return nil, &AuthError{Status: http.StatusForbidden, Message: "not in the server"}
		}
		return nil, &AuthError{Status: upstreamStatus(err), Message: "discord member lookup failed", Err: err}
	}

	if !slices.ContainsFunc(member.Roles, func(role string) bool {
		return slices.Contains(s.cfg.DiscordValidRoleIDs, role)
	}) {
		return nil, &AuthError{Status: http.StatusForbidden, Message: "no valid role"}
	}

	token, err := utils.GenerateRandomToken(sessionTokenSize)
	if err != nil {
		return nil, err
	}
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:              id,
		Token:           token,
		DiscordUsername: user.Username,
		CreatedAt:       time.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("signed in", "discord_username", user.Username)
	return session, nil
}

func (s *authService) ValidateSession(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "missing session"}
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "invalid session"}
	}
	return session, nil
}

// upstreamStatus keeps Discord's HTTP status where there is one.
func upstreamStatus(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return http.StatusBadGateway
}
