package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/bwmarrin/discordgo"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeDiscord struct {
	user      *discordgo.User
	member    *discordgo.Member
	userErr   error
	memberErr error
	guildID   string
}

func (f *fakeDiscord) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	return f.user, f.userErr
}

func (f *fakeDiscord) UserGuildMember(guildID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.guildID = guildID
	return f.member, f.memberErr
}

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status, Status: http.StatusText(status)}}
}

type authFixture struct {
	svc      *authService
	sessions repository.SessionRepository
	discord  *fakeDiscord
	token    *oauth2.Token
	codes    []string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		sessions: repository.NewSessionRepository(newTestDB(t)),
		discord: &fakeDiscord{
			user:   &discordgo.User{ID: "42", Username: "ferris"},
			member: &discordgo.Member{Roles: []string{"role-other", "role-poster"}},
		},
	}

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client-id" || secret != "client-secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		require.NoError(t, r.ParseForm())
		f.codes = append(f.codes, r.PostForm.Get("code"))
		if r.PostForm.Get("code") == "bad-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"discord-access","token_type":"Bearer","expires_in":604800}`))
	}))
	t.Cleanup(tokenServer.Close)

	cfg := config.Config{
		ServerOrigin:        "http://localhost:3000",
		SecretKey:           "test-secret",
		DiscordClientID:     "client-id",
		DiscordClientSecret: "client-secret",
		DiscordServerID:     "guild-1",
		DiscordValidRoleIDs: []string{"role-poster"},
	}
	endpoint := oauth2.Endpoint{
		AuthURL:   tokenServer.URL + "/authorize",
		TokenURL:  tokenServer.URL + "/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
	f.svc = newAuthService(cfg, f.sessions, endpoint, func(tok *oauth2.Token) (discordAPI, error) {
		f.token = tok
		return f.discord, nil
	})
	return f
}

func (f *authFixture) state(t *testing.T) string {
	t.Helper()
	state, err := f.svc.NewState()
	require.NoError(t, err)
	return state
}

func requireAuthStatus(t *testing.T, err error, status int) *AuthError {
	t.Helper()
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.Equal(t, status, authErr.Status)
	return authErr
}

func TestAuthURL(t *testing.T) {
	f := newAuthFixture(t)
	state := f.state(t)

	u, err := url.Parse(f.svc.AuthURL(state))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:3000/validate-oauth", q.Get("redirect_uri"))
	assert.Equal(t, "identify guilds.members.read", q.Get("scope"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestValidateCallbackCreatesSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	state := f.state(t)

	session, err := f.svc.ValidateCallback(ctx, "good-code", state, state)

	require.NoError(t, err)
	assert.Equal(t, "ferris", session.DiscordUsername)
	assert.NotEmpty(t, session.ID)
	assert.Len(t, session.Token, 267, "200 random bytes, base64url without padding")
	assert.Equal(t, []string{"good-code"}, f.codes)
	assert.Equal(t, "discord-access", f.token.AccessToken)
	assert.Equal(t, "guild-1", f.discord.guildID)

	stored, err := f.svc.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)
}

func TestValidateCallbackStateChecks(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	state := f.state(t)

	_, err := f.svc.ValidateCallback(ctx, "", state, state)
	requireAuthStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.ValidateCallback(ctx, "good-code", state, "other")
	authErr := requireAuthStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "mismatch state", authErr.Message)

	_, err = f.svc.ValidateCallback(ctx, "good-code", "", "")
	requireAuthStatus(t, err, http.StatusBadRequest)

	_, err = f.svc.ValidateCallback(ctx, "good-code", "forged", "forged")
	authErr = requireAuthStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, "invalid state", authErr.Message)

	assert.Empty(t, f.codes, "no exchange happens before the state checks pass")
}

func TestValidateCallbackExchangeFailure(t *testing.T) {
	f := newAuthFixture(t)
	state := f.state(t)

	_, err := f.svc.ValidateCallback(context.Background(), "bad-code", state, state)
	requireAuthStatus(t, err, http.StatusBadRequest)
}

func TestValidateCallbackNotInServer(t *testing.T) {
	f := newAuthFixture(t)
	f.discord.memberErr = restError(http.StatusNotFound)
	state := f.state(t)

	_, err := f.svc.ValidateCallback(context.Background(), "good-code", state, state)

	authErr := requireAuthStatus(t, err, http.StatusForbidden)
	assert.Equal(t, "not in the server", authErr.Message)
}

func TestValidateCallbackWithoutValidRole(t *testing.T) {
	f := newAuthFixture(t)
	f.discord.member = &discordgo.Member{Roles: []string{"role-other"}}
	state := f.state(t)

	_, err := f.svc.ValidateCallback(context.Background(), "good-code", state, state)

	authErr := requireAuthStatus(t, err, http.StatusForbidden)
	assert.Equal(t, "no valid role", authErr.Message)
}

func TestValidateCallbackKeepsUpstreamStatus(t *testing.T) {
	f := newAuthFixture(t)
	f.discord.userErr = restError(http.StatusTooManyRequests)
	state := f.state(t)

	_, err := f.svc.ValidateCallback(context.Background(), "good-code", state, state)
	requireAuthStatus(t, err, http.StatusTooManyRequests)

	f.discord.userErr = nil
	f.discord.memberErr = errors.New("connection reset")
	_, err = f.svc.ValidateCallback(context.Background(), "good-code", state, state)
	requireAuthStatus(t, err, http.StatusBadGateway)
}

func TestValidateSession(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.ValidateSession(context.Background(), "")
	requireAuthStatus(t, err, http.StatusUnauthorized)

	_, err = f.svc.ValidateSession(context.Background(), "unknown")
	authErr := requireAuthStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "invalid session", authErr.Message)
}
