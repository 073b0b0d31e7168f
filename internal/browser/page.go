package browser

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/network"
)

// ErrNoMatch is returned by WaitAny when none of the probes appeared in time
var ErrNoMatch = errors.New("no probe matched")

// Page is the set of browser capabilities the engines drive.
// Session implements it over chromedp; tests use browsertest.Page.
type Page interface {
	// Alive is the cheap liveness probe run before a session is reused
	Alive(ctx context.Context) bool
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Reload(ctx context.Context) error
	// StopLoading aborts an in-flight page load
	StopLoading(ctx context.Context) error
	Exists(ctx context.Context, selector string) (bool, error)
	// WaitAny returns the first probe whose selector is present, polling until timeout
	WaitAny(ctx context.Context, timeout time.Duration, probes ...Probe) (Probe, error)
	Text(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// TypeText types one character at a time, sleeping delay() between characters
	TypeText(ctx context.Context, selector, text string, delay func() time.Duration) error
	PressKey(ctx context.Context, key string) error
	Evaluate(ctx context.Context, expression string, out any) error
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookies(ctx context.Context, cookies []*network.Cookie) error
	Close() error
}

// Launcher constructs a new browser session
type Launcher func(ctx context.Context, opts Options) (Page, error)
