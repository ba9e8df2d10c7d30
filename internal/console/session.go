package console

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/kayz/copydesk/internal/logger"
)

// State tracks the authentication state of the browser session.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	}
	return "?"
}

// Config describes the console and the browser used to reach it.
type Config struct {
	LoginURL     string
	DashboardURL string
	Email        string
	Password     string
	// ProfileDir persists cookies across restarts so the login form is
	// usually skipped entirely.
	ProfileDir string
	Headless   bool
	// ScreenSize is "fullscreen" or "WIDTHxHEIGHT".
	ScreenSize string
}

// loginRedirectWait bounds the post-login redirect back to the dashboard.
// The console occasionally takes >10s to bounce after credential submit.
const loginRedirectWait = 25 * time.Second

// Session owns the one browser session all onboarding runs share. The
// queue guarantees only one workflow touches it at a time.
type Session struct {
	cfg     Config
	browser *rod.Browser
	page    *rod.Page

	mu    sync.Mutex
	state State
}

func NewSession(cfg Config) *Session {
	return &Session{cfg: cfg, state: Unauthenticated}
}

// Open launches the browser with the persistent profile and creates the
// single page every workflow runs on.
func (s *Session) Open() error {
	l := launcher.New().
		Headless(s.cfg.Headless).
		Leakless(true)

	if s.cfg.ProfileDir != "" {
		l = l.UserDataDir(s.cfg.ProfileDir)
	}
	switch {
	case s.cfg.ScreenSize == "" || s.cfg.ScreenSize == "fullscreen":
		l = l.Set("start-fullscreen")
	default:
		wh := strings.SplitN(s.cfg.ScreenSize, "x", 2)
		if len(wh) == 2 {
			l = l.Set("window-size", wh[0]+","+wh[1])
		}
	}

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return fmt.Errorf("failed to open page: %w", err)
	}

	s.browser = browser
	s.page = page
	logger.Info("[Session] Browser session opened (profile: %s)", s.cfg.ProfileDir)
	return nil
}

// Page returns the session's single page.
func (s *Session) Page() *rod.Page {
	return s.page
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Close shuts the browser down. Called on process shutdown; in-flight
// work is not drained first.
func (s *Session) Close() {
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			logger.Warn("[Session] Browser close: %v", err)
		}
	}
	logger.Info("[Session] Browser session closed")
}

// EnsureAuthenticated navigates to the dashboard and, if the console
// redirected to the login view, submits credentials and waits for the
// redirect back. Idempotent; called at the start of every queue item so
// an expired session heals itself.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	page := s.page.Context(ctx)

	if err := page.Navigate(s.cfg.DashboardURL); err != nil {
		return fmt.Errorf("failed to open dashboard: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("dashboard did not load: %w", err)
	}

	onLogin, err := s.onLoginView(page)
	if err != nil {
		return err
	}
	if !onLogin {
		s.setState(Authenticated)
		return nil
	}

	if s.cfg.Email == "" || s.cfg.Password == "" {
		s.setState(Expired)
		return fmt.Errorf("console session expired and no credentials are configured")
	}

	s.setState(Authenticating)
	logger.Info("[Session] Redirected to login view, signing in as %s", s.cfg.Email)

	if err := s.submitLogin(page); err != nil {
		s.setState(Expired)
		return err
	}

	// Poll for the redirect away from the login view.
	deadline := time.Now().Add(loginRedirectWait)
	for time.Now().Before(deadline) {
		onLogin, err := s.onLoginView(page)
		if err != nil {
			s.setState(Expired)
			return err
		}
		if !onLogin {
			s.setState(Authenticated)
			logger.Info("[Session] Login succeeded")
			return nil
		}
		select {
		case <-ctx.Done():
			s.setState(Expired)
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	s.setState(Expired)
	return fmt.Errorf("login did not redirect back to the dashboard within %s (credentials rejected?)", loginRedirectWait)
}

func (s *Session) onLoginView(page *rod.Page) (bool, error) {
	info, err := page.Info()
	if err != nil {
		return false, fmt.Errorf("failed to read page info: %w", err)
	}
	if s.cfg.LoginURL != "" && strings.HasPrefix(info.URL, s.cfg.LoginURL) {
		return true, nil
	}
	return strings.Contains(info.URL, "/login"), nil
}

func (s *Session) submitLogin(page *rod.Page) error {
	email, err := page.Timeout(stepWait).Element(`input[type="email"], input[name="email"], input[name="username"]`)
	if err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}
	if err := fillInput(email, s.cfg.Email); err != nil {
		return fmt.Errorf("failed to fill email: %w", err)
	}

	password, err := page.Timeout(stepWait).Element(`input[type="password"]`)
	if err != nil {
		return fmt.Errorf("password input not found: %w", err)
	}
	if err := fillInput(password, s.cfg.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}

	submit, err := page.Timeout(stepWait).Element(`button[type="submit"], input[type="submit"]`)
	if err != nil {
		return fmt.Errorf("login submit button not found: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click login: %w", err)
	}
	return nil
}

// fillInput replaces an input's current content. rod's Input appends, so
// existing text has to be selected first.
func fillInput(el *rod.Element, value string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}
