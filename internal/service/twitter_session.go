package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/browser"
)

type SessionState int32

const (
	SessionDisabled SessionState = iota
	SessionLoggingIn
	SessionLoggedIn
	SessionAwaitingConfirmationCode
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionDisabled:
		return "disabled"
	case SessionLoggingIn:
		return "logging_in"
	case SessionLoggedIn:
		return "logged_in"
	case SessionAwaitingConfirmationCode:
		return "awaiting_confirmation_code"
	case SessionFailed:
		return "failed"
	}
	return fmt.Sprintf("SessionState(%d)", int32(s))
}

// LoginPath records which branch of the login race made the terminal
// transition.
type LoginPath string

const (
	LoginPathNone           LoginPath = ""
	LoginPathNavigation     LoginPath = "navigation"
	LoginPathEmailChallenge LoginPath = "email_challenge"
	LoginPathCodeChallenge  LoginPath = "code_challenge"
	LoginPathTimeout        LoginPath = "timeout"
)

const (
	twitterLoginURL        = "https://twitter.com/login"
	selectorUsernameInput  = "input[name=text]"
	selectorPasswordInput  = "input[name=password]"
	selectorChallengeInput = `input[data-testid="ocfEnterTextTextInput"]`
)

var ErrLoginStarted = errors.New("twitter login already started")

type TwitterSessionManager interface {
	Login(ctx context.Context) error
	InputConfirmationCode(ctx context.Context, code string) error
	State() SessionState
	Enabled() bool
	AwaitingConfirmationCode() bool
	LoginPath() LoginPath
	Account() string
}

type twitterSessionManager struct {
	cfg     config.Twitter
	browser browser.Browser

	state   atomic.Int32
	started atomic.Bool
	codeMu  sync.Mutex

	mu         sync.Mutex
	page       browser.Page
	pageClosed bool
	path       LoginPath
}

// NewTwitterSessionManager returns a manager in LoggingIn when the
// credentials and browser are present and in Disabled otherwise.
func NewTwitterSessionManager(cfg config.Twitter, b browser.Browser) TwitterSessionManager {
	s := &twitterSessionManager{cfg: cfg, browser: b}
	if cfg.Configured() && b != nil {
		s.state.Store(int32(SessionLoggingIn))
	}
	return s
}

func (s *twitterSessionManager) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *twitterSessionManager) Enabled() bool {
	return s.State() != SessionDisabled
}

func (s *twitterSessionManager) AwaitingConfirmationCode() bool {
	return s.State() == SessionAwaitingConfirmationCode
}

func (s *twitterSessionManager) LoginPath() LoginPath {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *twitterSessionManager) Account() string {
	return s.cfg.Username
}

// Login runs the username/password flow once on a dedicated page, then races
// direct navigation against a challenge prompt. A code challenge leaves the
// page open for InputConfirmationCode and returns nil.
func (s *twitterSessionManager) Login(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrLoginStarted
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("open login page: %w", err))
	}
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()

	if err := page.Navigate(ctx, twitterLoginURL); err != nil {
		s.closeLoginPage()
		return s.fail(fmt.Errorf("navigate to login: %w", err))
	}

	if err := s.submitField(ctx, page, "username input", selectorUsernameInput, s.cfg.Username); err != nil {
		s.closeLoginPage()
		return s.fail(err)
	}

	password, err := waitFor(ctx, page, s.cfg.ElementTimeout, "password input", selectorPasswordInput)
	if err != nil {
		s.closeLoginPage()
		return s.fail(err)
	}
	if err := password.Type(ctx, s.cfg.Password); err != nil {
		s.closeLoginPage()
		return s.fail(fmt.Errorf("type password: %w", err))
	}

	raceCtx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()
	race := &loginRace{cancel: cancel}

	navigated := page.ExpectNavigation(raceCtx)
	if err := password.PressEnter(ctx); err != nil {
		s.closeLoginPage()
		return s.fail(fmt.Errorf("submit password: %w", err))
	}

	var wg sync.WaitGroup
	navExited := make(chan struct{})
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(navExited)
		if err := navigated(); err != nil {
			return
		}
		if race.claim(LoginPathNavigation) {
			s.finish(LoginPathNavigation, SessionLoggedIn)
			s.closeLoginPage()
		}
	}()

	go func() {
		defer wg.Done()
		errs <- s.handleChallenge(ctx, raceCtx, page, race, navExited)
	}()

	wg.Wait()
	close(errs)

	timedOut := race.claim(LoginPathTimeout)
	s.mu.Lock()
	s.path = race.winner
	s.mu.Unlock()

	if timedOut {
		s.closeLoginPage()
		return s.fail(fmt.Errorf("twitter login timed out after %s", s.cfg.LoginTimeout))
	}

	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// handleChallenge is the losing-or-winning partner of the navigation wait.
// It only touches the page after it has claimed the race.
func (s *twitterSessionManager) handleChallenge(ctx, raceCtx context.Context, page browser.Page, race *loginRace, navExited <-chan struct{}) error {
	input, err := page.WaitElement(raceCtx, selectorChallengeInput)
	if err != nil {
		return nil
	}
	inputType, _, err := input.Attribute(raceCtx, "type")
	if err != nil {
		return nil
	}

	if inputType != "email" {
		if race.claim(LoginPathCodeChallenge) {
			s.finish(LoginPathCodeChallenge, SessionAwaitingConfirmationCode)
			slog.Info("twitter login is waiting for a confirmation code")
		}
		return nil
	}

	if !race.claim(LoginPathEmailChallenge) {
		return nil
	}
	<-navExited
	defer s.closeLoginPage()

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.ElementTimeout)
	defer cancel()
	navigated := page.ExpectNavigation(navCtx)

	if err := input.Type(ctx, s.cfg.UserEmail); err != nil {
		return s.fail(fmt.Errorf("type challenge email: %w", err))
	}
	if err := input.PressEnter(ctx); err != nil {
		return s.fail(fmt.Errorf("submit challenge email: %w", err))
	}
	if err := navigated(); err != nil {
		return s.fail(fmt.Errorf("wait for navigation after email challenge: %w", err))
	}

	s.finish(LoginPathEmailChallenge, SessionLoggedIn)
	return nil
}

// InputConfirmationCode submits an operator-supplied code on the login page
// left open by a code challenge. It is a no-op in any other state.
func (s *twitterSessionManager) InputConfirmationCode(ctx context.Context, code string) error {
	s.codeMu.Lock()
	defer s.codeMu.Unlock()

	if s.State() != SessionAwaitingConfirmationCode {
		return nil
	}

	s.mu.Lock()
	page := s.page
	closed := s.pageClosed
	s.mu.Unlock()
	if page == nil || closed || page.IsClosed() {
		return nil
	}
	defer s.closeLoginPage()

	input, ok, err := page.Find(ctx, selectorChallengeInput)
	if err != nil {
		return s.fail(fmt.Errorf("find confirmation code input: %w", err))
	}
	if !ok {
		return s.fail(&ElementNotFoundError{Affordance: "confirmation code input", Selector: selectorChallengeInput, Err: errors.New("not on page")})
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.ElementTimeout)
	defer cancel()
	navigated := page.ExpectNavigation(navCtx)

	if err := input.Type(ctx, code); err != nil {
		return s.fail(fmt.Errorf("type confirmation code: %w", err))
	}
	if err := input.PressEnter(ctx); err != nil {
		return s.fail(fmt.Errorf("submit confirmation code: %w", err))
	}
	if err := navigated(); err != nil {
		return s.fail(fmt.Errorf("wait for navigation after confirmation code: %w", err))
	}

	s.state.Store(int32(SessionLoggedIn))
	slog.Info("twitter confirmation code accepted")
	return nil
}

func (s *twitterSessionManager) submitField(ctx context.Context, page browser.Page, affordance, selector, value string) error {
	el, err := waitFor(ctx, page, s.cfg.ElementTimeout, affordance, selector)
	if err != nil {
		return err
	}
	if err := el.Type(ctx, value); err != nil {
		return fmt.Errorf("type %s: %w", affordance, err)
	}
	if err := el.PressEnter(ctx); err != nil {
		return fmt.Errorf("submit %s: %w", affordance, err)
	}
	return nil
}

func (s *twitterSessionManager) finish(path LoginPath, state SessionState) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	s.state.Store(int32(state))
	slog.Info("twitter login finished", "path", string(path), "state", state.String())
}

func (s *twitterSessionManager) fail(err error) error {
	s.state.Store(int32(SessionFailed))
	slog.Error("twitter login failed", "error", err)
	return err
}

// closeLoginPage may be called from either race branch; only the first call
// reaches the page.
func (s *twitterSessionManager) closeLoginPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil || s.pageClosed {
		return
	}
	s.pageClosed = true
	if err := s.page.Close(); err != nil {
		slog.Info(err.Error())
	}
}

type loginRace struct {
	once   sync.Once
	winner LoginPath
	cancel context.CancelFunc
}

// claim reports whether path is the first to finish, and aborts the other
// branch when it is.
func (r *loginRace) claim(path LoginPath) bool {
	won := false
	r.once.Do(func() {
		r.winner = path
		won = true
		r.cancel()
	})
	return won
}
