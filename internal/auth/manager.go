package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/types"
)

const (
	verifyTimeout   = 10 * time.Second
	fieldTimeout    = 60 * time.Second
	passwordTimeout = 2 * time.Second
	confirmTimeout  = 60 * time.Second
)

// Manager owns the browser session slot of one scraping context.
// It is only driven by that context's job worker.
type Manager struct {
	name          string
	launch        browser.Launcher
	opts          browser.Options
	cookieStore   *CookieStore
	importCookies bool
	keyDelay      func() time.Duration

	mu   sync.Mutex
	page browser.Page
}

type ManagerOption func(*Manager)

// WithCookieImport seeds a freshly launched profile from the shared cookie file
func WithCookieImport() ManagerOption {
	return func(m *Manager) { m.importCookies = true }
}

// WithKeyDelay replaces the randomized per-character typing delay
func WithKeyDelay(fn func() time.Duration) ManagerOption {
	return func(m *Manager) { m.keyDelay = fn }
}

// NewManager creates the session manager for one context
func NewManager(name string, launch browser.Launcher, opts browser.Options, cookieStore *CookieStore, options ...ManagerOption) *Manager {
	m := &Manager{
		name:        name,
		launch:      launch,
		opts:        opts,
		cookieStore: cookieStore,
		keyDelay:    humanKeyDelay,
	}
	for _, o := range options {
		o(m)
	}
	return m
}

func humanKeyDelay() time.Duration {
	return 20*time.Millisecond + rand.N(80*time.Millisecond)
}

// Acquire returns an authenticated page, reusing the live slot when possible
func (m *Manager) Acquire(ctx context.Context, creds types.Credentials) (browser.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := logrus.WithField("context", m.name)

	if m.page != nil && !m.page.Alive(ctx) {
		log.Warn("Browser session is not responding, recreating it")
		m.page.Close()
		m.page = nil
	}

	if m.page == nil {
		page, err := m.start(ctx)
		if err != nil {
			return nil, err
		}
		m.page = page
	}

	if err := m.ensureLoggedIn(ctx, m.page, creds); err != nil {
		var authErr *types.AuthError
		if errors.As(err, &authErr) && m.cookieStore != nil {
			log.Warnf("Login failed at %s, clearing stored cookies", authErr.Stage)
			if cerr := m.cookieStore.Clear(); cerr != nil {
				log.Warnf("Failed to clear cookies: %v", cerr)
			}
		}
		return nil, err
	}

	if err := m.persistCookies(ctx, m.page); err != nil {
		log.Warnf("Failed to save cookies: %v", err)
	}

	return m.page, nil
}

// start launches a browser, retrying once pinned to the running version on a mismatch
func (m *Manager) start(ctx context.Context) (browser.Page, error) {
	log := logrus.WithField("context", m.name)

	page, err := m.launch(ctx, m.opts)
	if err != nil {
		major, ok := browser.RequiredVersion(err)
		if !ok {
			return nil, &types.DriverInitError{Profile: m.opts.ProfileDir, Err: err}
		}
		log.Warnf("Browser version mismatch, retrying pinned to %d", major)
		pinned := m.opts.Pinned(major)
		page, err = m.launch(ctx, pinned)
		if err != nil {
			return nil, &types.DriverInitError{Profile: m.opts.ProfileDir, Err: err}
		}
		m.opts = pinned
	}

	if m.importCookies {
		m.seedCookies(ctx, page)
	}
	return page, nil
}

// seedCookies copies the shared session into a separate profile. Failures only log.
func (m *Manager) seedCookies(ctx context.Context, page browser.Page) {
	log := logrus.WithField("context", m.name)

	if m.cookieStore == nil {
		return
	}
	if !m.cookieStore.IsValid() {
		log.Debugf("No live session in %s, skipping cookie import", m.cookieStore.Path())
		return
	}
	cookies, err := m.cookieStore.GetXCookies()
	if err != nil {
		log.Debugf("No cookies to import: %v", err)
		return
	}
	if len(cookies) == 0 {
		return
	}

	// Cookies can only be set for the domain of the current document
	if err := page.Navigate(ctx, "https://x.com"); err != nil {
		log.Warnf("Failed to open x.com for cookie import: %v", err)
		return
	}
	if err := page.SetCookies(ctx, cookies); err != nil {
		log.Warnf("Failed to import cookies: %v", err)
		return
	}
	if err := page.Reload(ctx); err != nil {
		log.Debugf("Reload after cookie import failed: %v", err)
	}
	log.Infof("Imported %d cookies from %s", len(cookies), m.cookieStore.Path())
}

func isLoginURL(url string) bool {
	for _, p := range loginPaths {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}

// ensureLoggedIn checks the home marker once, refreshes once, then falls back to the login form
func (m *Manager) ensureLoggedIn(ctx context.Context, page browser.Page, creds types.Credentials) error {
	log := logrus.WithField("context", m.name)

	if url, err := page.Location(ctx); err == nil && isLoginURL(url) {
		log.Info("Browser is on the login page")
		return m.login(ctx, page, creds)
	}

	if m.authenticated(ctx, page, true) {
		log.Debug("Session is authenticated")
		return nil
	}

	log.Info("Home marker not found, refreshing once")
	if err := page.Reload(ctx); err != nil {
		log.Debugf("Refresh failed: %v", err)
	}
	if m.authenticated(ctx, page, false) {
		log.Info("Session is authenticated after refresh")
		return nil
	}

	return m.login(ctx, page, creds)
}

func (m *Manager) authenticated(ctx context.Context, page browser.Page, navigate bool) bool {
	if navigate {
		if err := page.Navigate(ctx, HomeURL); err != nil {
			logrus.WithField("context", m.name).Debugf("Failed to open home: %v", err)
			return false
		}
	}
	if _, err := page.WaitAny(ctx, verifyTimeout, HomeMarkers...); err != nil {
		return false
	}
	url, err := page.Location(ctx)
	return err == nil && !isLoginURL(url)
}

// login fills the two-step login form
func (m *Manager) login(ctx context.Context, page browser.Page, creds types.Credentials) error {
	log := logrus.WithField("context", m.name)

	if creds.Empty() {
		return &types.AuthError{Stage: "credentials", Err: errors.New("no username or password configured")}
	}

	log.Infof("Logging in as %s", creds.Username)
	if err := page.Navigate(ctx, LoginURL); err != nil {
		return &types.AuthError{Stage: "login page", Err: err}
	}

	field, err := page.WaitAny(ctx, fieldTimeout, UsernameField...)
	if err != nil {
		return &types.AuthError{Stage: "username field", Err: err}
	}
	if err := page.TypeText(ctx, field.Selector, creds.Username, m.keyDelay); err != nil {
		return &types.AuthError{Stage: "username", Err: err}
	}
	if err := page.PressKey(ctx, browser.KeyEnter); err != nil {
		return &types.AuthError{Stage: "username submit", Err: err}
	}

	field, err = page.WaitAny(ctx, passwordTimeout, PasswordField...)
	if err != nil {
		log.Debug("Password field did not appear, clicking next")
		if err := clickNext(ctx, page); err != nil {
			log.Debugf("Next control: %v", err)
		}
		field, err = page.WaitAny(ctx, fieldTimeout, PasswordField...)
		if err != nil {
			return &types.AuthError{Stage: "password field", Err: err}
		}
	}
	if err := page.TypeText(ctx, field.Selector, creds.Password, m.keyDelay); err != nil {
		return &types.AuthError{Stage: "password", Err: err}
	}
	if err := page.PressKey(ctx, browser.KeyEnter); err != nil {
		return &types.AuthError{Stage: "password submit", Err: err}
	}

	if _, err := page.WaitAny(ctx, confirmTimeout, HomeMarkers...); err != nil {
		return &types.AuthError{Stage: "confirm", Err: err}
	}

	log.Info("Login successful")
	return nil
}

// clickNext clicks the first span whose text is one of nextLabels
func clickNext(ctx context.Context, page browser.Page) error {
	labels, err := json.Marshal(nextLabels)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(function() {
		const labels = %s;
		for (const span of document.querySelectorAll('span')) {
			if (labels.includes(span.textContent.trim())) {
				(span.closest('[role="button"]') || span).click();
				return true;
			}
		}
		return false;
	})()`, labels)

	var clicked bool
	if err := page.Evaluate(ctx, expr, &clicked); err != nil {
		return err
	}
	if !clicked {
		return errors.New("next control not found")
	}
	return nil
}

func (m *Manager) persistCookies(ctx context.Context, page browser.Page) error {
	if m.cookieStore == nil {
		return nil
	}
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return err
	}
	return m.cookieStore.Save(cookies)
}

// Close tears the slot down; the next Acquire launches a new browser
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.page != nil {
		m.page.Close()
		m.page = nil
	}
}
