// Package browser provides the chromedp-backed browser session shared by the scraper and the blocker.
package browser

import (
	"fmt"

	"github.com/chromedp/chromedp"
)

// DefaultChromeMajor is used in the user agent until the running browser says otherwise
const DefaultChromeMajor = 120

const userAgentFormat = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.0.0 Safari/537.36"

// Options describes one browser context
type Options struct {
	Headless bool
	// ProfileDir is a persistent user data dir, reused across restarts to keep cookies and local storage
	ProfileDir string
	// ChromeMajor is the browser major version the user agent claims. Zero means DefaultChromeMajor.
	// Launch fails with VersionMismatchError when it differs from the running browser.
	ChromeMajor int
}

// Major is the claimed browser major version
func (o Options) Major() int {
	if o.ChromeMajor <= 0 {
		return DefaultChromeMajor
	}
	return o.ChromeMajor
}

// UserAgent returns the user agent matching the pinned major version
func (o Options) UserAgent() string {
	return fmt.Sprintf(userAgentFormat, o.Major())
}

// Pinned returns a copy of o bound to the given major version
func (o Options) Pinned(major int) Options {
	o.ChromeMajor = major
	return o
}

// Allocator returns chromedp allocator options with anti-bot-detection measures.
// All browser instances should use this to ensure consistent stealth configuration.
func (o Options) Allocator() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(o.UserAgent()),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("start-maximized", true),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),

		// Feeds keep loading while the window is in the background
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)

	if o.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(o.ProfileDir))
	}

	if o.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	return opts
}
