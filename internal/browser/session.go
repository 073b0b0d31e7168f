package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
)

const (
	// NavigateTimeout bounds a single page load
	NavigateTimeout = 30 * time.Second
	probeTimeout    = 3 * time.Second
	actionTimeout   = 10 * time.Second
	pollInterval    = 250 * time.Millisecond
)

// Keys understood by PressKey
const (
	KeyEnter  = kb.Enter
	KeyEscape = kb.Escape
)

// VersionMismatchError means the user agent claims a different Chrome major than the one running
type VersionMismatchError struct {
	Supported int
	Current   int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("session not created: this browser session only supports Chrome version %d, Current browser version is %d", e.Supported, e.Current)
}

var currentVersionRe = regexp.MustCompile(`Current browser version is (\d+)`)

// RequiredVersion extracts the running browser major from a launch failure
func RequiredVersion(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var vm *VersionMismatchError
	if errors.As(err, &vm) {
		return vm.Current, true
	}
	m := currentVersionRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return n, true
}

// Session is a chromedp-driven browser tab bound to a persistent profile
type Session struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
}

var _ Page = (*Session)(nil)

// Launch starts a browser for opts. The browser outlives ctx; ctx only bounds startup checks.
func Launch(ctx context.Context, opts Options) (Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts.Allocator()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logrus.Debugf))

	s := &Session{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		opts:        opts,
	}

	// The first Run allocates the browser and must use the tab context itself
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	major, err := s.runningMajor(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to read browser version: %w", err)
	}

	if claimed := opts.Major(); major != 0 && major != claimed {
		s.Close()
		return nil, &VersionMismatchError{Supported: claimed, Current: major}
	}

	logrus.WithFields(logrus.Fields{
		"profile": opts.ProfileDir,
		"major":   major,
	}).Info("Browser session started")
	return s, nil
}

func (s *Session) runningMajor(ctx context.Context) (int, error) {
	var product string
	err := s.run(ctx, actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = cdpbrowser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		return 0, err
	}
	return parseMajor(product), nil
}

// parseMajor reads the major version out of "HeadlessChrome/120.0.6099.109"
func parseMajor(product string) int {
	_, version, ok := strings.Cut(product, "/")
	if !ok {
		return 0
	}
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *Session) Alive(ctx context.Context) bool {
	var title string
	return s.run(ctx, probeTimeout, chromedp.Title(&title)) == nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, NavigateTimeout, chromedp.Navigate(url))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, probeTimeout, chromedp.Location(&url))
	return url, err
}

func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, NavigateTimeout, chromedp.Reload())
}

func (s *Session) StopLoading(ctx context.Context) error {
	return s.run(ctx, probeTimeout, chromedp.Evaluate(`window.stop()`, nil))
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(selector))
	err := s.run(ctx, probeTimeout, chromedp.Evaluate(expr, &found))
	return found, err
}

func (s *Session) WaitAny(ctx context.Context, timeout time.Duration, probes ...Probe) (Probe, error) {
	deadline := time.Now().Add(timeout)
	for {
		if p, ok := FirstMatch(ctx, s, probes); ok {
			return p, nil
		}
		if time.Now().After(deadline) {
			return Probe{}, ErrNoMatch
		}
		select {
		case <-ctx.Done():
			return Probe{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	expr := fmt.Sprintf(`(document.querySelector(%s)?.innerText) || ""`, strconv.Quote(selector))
	err := s.run(ctx, probeTimeout, chromedp.Evaluate(expr, &text))
	return text, err
}

func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *Session) TypeText(ctx context.Context, selector, text string, delay func() time.Duration) error {
	if err := s.run(ctx, actionTimeout, chromedp.Focus(selector, chromedp.ByQuery)); err != nil {
		return err
	}
	for _, r := range text {
		if err := s.run(ctx, actionTimeout, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
		if delay != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay()):
			}
		}
	}
	return nil
}

func (s *Session) PressKey(ctx context.Context, key string) error {
	return s.run(ctx, actionTimeout, chromedp.KeyEvent(key))
}

func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	return s.run(ctx, actionTimeout, chromedp.Evaluate(expression, out))
}

// Cookies gets all cookies from the browser
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// SetCookies injects cookies into the browser profile
func (s *Session) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	return s.run(ctx, actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.SameSite != "" {
				params = params.WithSameSite(c.SameSite)
			}
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&expires)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

func (s *Session) Close() error {
	s.tabCancel()
	s.allocCancel()
	return nil
}
