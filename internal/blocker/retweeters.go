package blocker

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// Roster is a scrollable list of accounts
type Roster interface {
	Open(ctx context.Context, url string) error
	// WaitForCells waits until any account cell renders
	WaitForCells(ctx context.Context, timeout time.Duration) error
	// Hrefs returns the anchor hrefs of the rendered cells, modal dialog first
	Hrefs(ctx context.Context) ([]string, error)
	// ScrollToEnd brings the last cell into view
	ScrollToEnd(ctx context.Context) error
}

const (
	noChangeBudget      = 10
	smallSetBudget      = 3
	smallSetThreshold   = 5
	defaultSettle       = 4 * time.Second
	defaultCellsTimeout = 15 * time.Second
	defaultAfterScroll  = 2 * time.Second
)

// RetweeterScanner collects the handles that reposted a post
type RetweeterScanner struct {
	Settle       time.Duration
	CellsTimeout time.Duration
	AfterScroll  time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error
}

func NewRetweeterScanner() *RetweeterScanner {
	return &RetweeterScanner{
		Settle:       defaultSettle,
		CellsTimeout: defaultCellsTimeout,
		AfterScroll:  defaultAfterScroll,
		Sleep:        browser.Sleep,
	}
}

// RetweetsURL points a post URL at its reposts view
func RetweetsURL(postURL string) string {
	u, _, _ := strings.Cut(strings.TrimSpace(postURL), "?")
	u = strings.TrimRight(u, "/")
	if !strings.HasSuffix(u, "/retweets") {
		u += "/retweets"
	}
	return u
}

// HandleFromHref extracts an account handle from an anchor href
func HandleFromHref(href string) (string, bool) {
	if href == "" || strings.Contains(href, "/status/") {
		return "", false
	}
	path := href
	if _, after, ok := strings.Cut(href, "x.com/"); ok {
		path = after
	} else if strings.Contains(href, "://") {
		return "", false
	}
	path = strings.TrimLeft(path, "/")
	handle, _, _ := strings.Cut(path, "/")
	handle, _, _ = strings.Cut(handle, "?")
	if handle == "" {
		return "", false
	}
	for _, p := range NonProfilePaths {
		if strings.EqualFold(handle, p) {
			return "", false
		}
	}
	return handle, true
}

// Scan collects handles until the list stops growing or stop is raised. The result is sorted.
func (s *RetweeterScanner) Scan(ctx context.Context, roster Roster, postURL string, obs types.Observer, stop types.StopFunc) ([]string, error) {
	if obs == nil {
		obs = types.Discard
	}

	url := RetweetsURL(postURL)
	log := logrus.WithField("post", url)

	log.Infof("Navigating to %s", url)
	if err := roster.Open(ctx, url); err != nil {
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	if err := s.Sleep(ctx, s.Settle); err != nil {
		return nil, err
	}

	if err := roster.WaitForCells(ctx, s.CellsTimeout); err != nil {
		log.Warn("Timeout waiting for the account list, scanning anyway")
	}

	users := make(map[string]struct{})
	lastCount, noChange := 0, 0

	for !stop.Stopped() {
		hrefs, err := roster.Hrefs(ctx)
		if err != nil {
			return sortedHandles(users), &types.NavigationError{URL: url, Err: err}
		}
		for _, href := range hrefs {
			if h, ok := HandleFromHref(href); ok {
				users[h] = struct{}{}
			}
		}

		count := len(users)
		obs.Observe(types.Progress{Phase: "scanning", Count: count})
		log.Infof("Users found: %d", count)

		budget := noChangeBudget
		if count < smallSetThreshold {
			budget = smallSetBudget
		}
		if count == lastCount {
			noChange++
		} else {
			noChange = 0
		}
		lastCount = count

		if noChange >= budget {
			log.Info("No new users found for a while, stopping scan")
			break
		}

		if err := roster.ScrollToEnd(ctx); err != nil {
			log.Debugf("Scroll failed: %v", err)
		}
		if err := s.Sleep(ctx, s.AfterScroll); err != nil {
			return sortedHandles(users), err
		}
	}

	return sortedHandles(users), nil
}

func sortedHandles(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
