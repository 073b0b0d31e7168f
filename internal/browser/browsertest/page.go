// Package browsertest provides a scriptable browser.Page for engine tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/xharvest/internal/browser"
)

// Page is an in-memory browser.Page. Selectors are present when Present[sel] is true.
// Hooks run before the default behaviour and may mutate the page.
type Page struct {
	mu sync.Mutex

	Present map[string]bool
	Texts   map[string]string
	URL     string
	Dead    bool

	// NavigateErrs is consumed one error per Navigate call
	NavigateErrs []error
	OnNavigate   func(p *Page, url string)
	OnReload     func(p *Page)
	// OnClick runs when a present selector is clicked
	OnClick map[string]func(p *Page)
	// OnKey runs when a key is pressed
	OnKey func(p *Page, key string)
	// Eval answers Evaluate calls; nil means success with no output
	Eval func(p *Page, expression string, out any) error

	Jar []*network.Cookie

	Navigations []string
	Clicks      []string
	Typed       map[string]string
	Keys        []string
	Reloads     int
	Stops       int
	Closed      bool
}

var _ browser.Page = (*Page)(nil)

// New returns an alive page at about:blank
func New() *Page {
	return &Page{
		Present: map[string]bool{},
		Texts:   map[string]string{},
		OnClick: map[string]func(p *Page){},
		Typed:   map[string]string{},
		URL:     "about:blank",
	}
}

// Show marks selectors as present
func (p *Page) Show(selectors ...string) {
	for _, s := range selectors {
		p.Present[s] = true
	}
}

// Hide marks selectors as absent
func (p *Page) Hide(selectors ...string) {
	for _, s := range selectors {
		delete(p.Present, s)
	}
}

// Launcher returns a browser.Launcher that hands out pages in order and records the options used
func Launcher(pages ...*Page) (browser.Launcher, *[]browser.Options) {
	var mu sync.Mutex
	var seen []browser.Options
	return func(ctx context.Context, opts browser.Options) (browser.Page, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, opts)
		if len(pages) == 0 {
			return nil, errors.New("browsertest: no more pages")
		}
		next := pages[0]
		pages = pages[1:]
		return next, nil
	}, &seen
}

func (p *Page) Alive(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Dead && !p.Closed
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if len(p.NavigateErrs) > 0 {
		err := p.NavigateErrs[0]
		p.NavigateErrs = p.NavigateErrs[1:]
		if err != nil {
			return err
		}
	}
	p.URL = url
	if p.OnNavigate != nil {
		p.OnNavigate(p, url)
	}
	return nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.URL, nil
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Reloads++
	if p.OnReload != nil {
		p.OnReload(p)
	}
	return nil
}

func (p *Page) StopLoading(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stops++
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Present[selector], nil
}

// WaitAny answers immediately; the fake never waits
func (p *Page) WaitAny(ctx context.Context, timeout time.Duration, probes ...browser.Probe) (browser.Probe, error) {
	if probe, ok := browser.FirstMatch(ctx, p, probes); ok {
		return probe, nil
	}
	return browser.Probe{}, browser.ErrNoMatch
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Texts[selector], nil
}

func (p *Page) Click(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.Present[selector] {
		return browser.ErrNoMatch
	}
	p.Clicks = append(p.Clicks, selector)
	if hook := p.OnClick[selector]; hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) TypeText(ctx context.Context, selector, text string, delay func() time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.Present[selector] {
		return browser.ErrNoMatch
	}
	p.Typed[selector] += text
	return nil
}

func (p *Page) PressKey(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	if p.OnKey != nil {
		p.OnKey(p, key)
	}
	return nil
}

func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Eval == nil {
		return nil
	}
	return p.Eval(p, expression, out)
}

func (p *Page) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*network.Cookie(nil), p.Jar...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Jar = append(p.Jar, cookies...)
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
