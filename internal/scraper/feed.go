package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// Feed is the infinite-scroll surface a scan walks
type Feed interface {
	// Open loads url unless the page is already there. navigated reports whether a load happened.
	Open(ctx context.Context, url string) (navigated bool, err error)
	// Items returns the currently rendered feed elements in DOM order
	Items(ctx context.Context) ([]RawItem, error)
	LastItemText(ctx context.Context) (string, error)
	// ScrollBy scrolls forward by fraction of the viewport height
	ScrollBy(ctx context.Context, fraction float64) error
	Position(ctx context.Context) (Position, error)
}

// Position is the viewport bottom and document height in pixels
type Position struct {
	Bottom float64 `json:"bottom"`
	Height float64 `json:"height"`
}

const (
	tooOldLimit    = 10
	stallBudget    = 15
	bottomMargin   = 200
	scrollFraction = 0.85
)

// Pacing holds the waits of a scan
type Pacing struct {
	// Settle follows a navigation, SettleSame an already open target
	Settle      time.Duration
	SettleSame  time.Duration
	Poll        time.Duration
	Polls       int
	BottomPause time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultPacing polls for new content for up to 2s after each scroll
func DefaultPacing() Pacing {
	return Pacing{
		Settle:      3 * time.Second,
		SettleSame:  2 * time.Second,
		Poll:        200 * time.Millisecond,
		Polls:       10,
		BottomPause: time.Second,
		Sleep:       browser.Sleep,
	}
}

// FeedScanner collects in-window records from one target
type FeedScanner struct {
	Pacing   Pacing
	Location *time.Location
}

// NewFeedScanner normalizes feed timestamps to loc
func NewFeedScanner(loc *time.Location) *FeedScanner {
	return &FeedScanner{Pacing: DefaultPacing(), Location: loc}
}

// Scan walks target until the window is exhausted, the feed stalls or stop is raised.
// Records come back in discovery order. On a browser failure the records collected so far
// are returned with a NavigationError.
func (s *FeedScanner) Scan(ctx context.Context, feed Feed, target string, req types.ScrapeRequest, obs types.Observer, stop types.StopFunc) ([]types.Record, error) {
	if obs == nil {
		obs = types.Discard
	}

	url := TargetURL(target, req.Mode)
	criteria := Criteria{
		Mode:     req.Mode,
		Keywords: ParseKeywords(req.Keywords),
	}
	if req.Mode.IsProfile() {
		criteria.Handle = NormalizeHandle(target)
	}

	log := logrus.WithFields(logrus.Fields{"target": target, "mode": req.Mode})
	log.Infof("Navigating to %s", url)

	navigated, err := feed.Open(ctx, url)
	if err != nil {
		return nil, &types.NavigationError{URL: url, Err: err}
	}
	settle := s.Pacing.SettleSame
	if navigated {
		settle = s.Pacing.Settle
	}
	if err := s.Pacing.Sleep(ctx, settle); err != nil {
		return nil, err
	}

	log.Infof("Collecting posts between %s and %s", req.Start.Format(time.DateTime), req.End.Format(time.DateTime))

	var (
		records []types.Record
		seen    = make(map[string]struct{})
		tooOld  int
		stalled int
	)

	for {
		if stop.Stopped() {
			log.Info("Stop requested, ending scan")
			return records, nil
		}

		items, err := feed.Items(ctx)
		if err != nil {
			return records, &types.NavigationError{URL: url, Err: err}
		}

		for _, raw := range items {
			if stop.Stopped() {
				log.Info("Stop requested, ending scan")
				return records, nil
			}

			item, ok := raw.FeedItem(s.Location)
			if !ok {
				continue
			}

			switch {
			case item.Timestamp.Before(req.Start):
				tooOld++
				if tooOld >= tooOldLimit {
					log.Info("Reached posts consistently older than start, stopping")
					return records, nil
				}
				continue
			case item.Timestamp.After(req.End):
				tooOld = 0
				continue
			}
			tooOld = 0

			if d := Classify(item, criteria); !d.Keep {
				log.Debugf("Skipping %s: %s", item.Permalink, d.Reason)
				continue
			}
			if _, dup := seen[item.Permalink]; dup {
				continue
			}
			if criteria.Handle != "" && !strings.EqualFold(item.Author, criteria.Handle) {
				log.Debugf("Skipping %s: author %s is not %s", item.Permalink, item.Author, criteria.Handle)
				continue
			}

			seen[item.Permalink] = struct{}{}
			rec := types.Record{Timestamp: item.Timestamp, Link: item.Permalink, Username: item.Author}
			records = append(records, rec)
			log.Infof("Found post: %s - %s (user: %s)", rec.Timestamp.Format(time.DateTime), rec.Link, rec.Username)
			obs.Observe(types.Progress{Phase: "scanning", Count: len(records), LastItem: rec.Link})
		}

		var lastText string
		if len(items) > 0 {
			lastText = items[len(items)-1].Text
		}

		if err := feed.ScrollBy(ctx, scrollFraction); err != nil {
			return records, &types.NavigationError{URL: url, Err: err}
		}
		if err := s.waitForNewContent(ctx, feed, lastText); err != nil {
			return records, err
		}

		pos, err := feed.Position(ctx)
		if err != nil {
			return records, &types.NavigationError{URL: url, Err: err}
		}
		if pos.Bottom >= pos.Height-bottomMargin {
			stalled++
			log.Infof("Reached bottom? Attempt %d/%d", stalled, stallBudget)
			if stalled > stallBudget {
				log.Infof("No new content loading for %d attempts, stopping", stallBudget)
				return records, nil
			}
			if err := s.Pacing.Sleep(ctx, s.Pacing.BottomPause); err != nil {
				return records, err
			}
		} else {
			stalled = 0
		}
	}
}

// waitForNewContent polls until the last rendered item changes or the poll budget runs out
func (s *FeedScanner) waitForNewContent(ctx context.Context, feed Feed, lastText string) error {
	for i := 0; i < s.Pacing.Polls; i++ {
		if err := s.Pacing.Sleep(ctx, s.Pacing.Poll); err != nil {
			return err
		}
		text, err := feed.LastItemText(ctx)
		if err != nil || text == "" {
			continue
		}
		if text != lastText {
			return nil
		}
	}
	return nil
}
