package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ibeckermayer/xharvest/internal/scraper"
	"github.com/ibeckermayer/xharvest/internal/types"
)

var utc3 = time.FixedZone("UTC+3", 3*3600)

// fakeFeed serves a fixed sequence of screens per URL; each scroll advances one screen
// and the last screen sits at the bottom of the page.
type fakeFeed struct {
	screens   map[string][][]scraper.RawItem
	openErrs  map[string]error
	itemsErrs map[int]error

	current    string
	idx        int
	opened     []string
	itemsCalls int
	scrolls    int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		screens:   map[string][][]scraper.RawItem{},
		openErrs:  map[string]error{},
		itemsErrs: map[int]error{},
	}
}

func (f *fakeFeed) Open(ctx context.Context, url string) (bool, error) {
	f.opened = append(f.opened, url)
	if err := f.openErrs[url]; err != nil {
		return false, err
	}
	f.current, f.idx = url, 0
	return true, nil
}

func (f *fakeFeed) screen() []scraper.RawItem {
	s := f.screens[f.current]
	if len(s) == 0 {
		return nil
	}
	return s[f.idx]
}

func (f *fakeFeed) Items(ctx context.Context) ([]scraper.RawItem, error) {
	f.itemsCalls++
	if err := f.itemsErrs[f.itemsCalls]; err != nil {
		return nil, err
	}
	return f.screen(), nil
}

func (f *fakeFeed) LastItemText(ctx context.Context) (string, error) {
	s := f.screen()
	if len(s) == 0 {
		return "", nil
	}
	return s[len(s)-1].Text, nil
}

func (f *fakeFeed) ScrollBy(ctx context.Context, fraction float64) error {
	f.scrolls++
	if f.idx < len(f.screens[f.current])-1 {
		f.idx++
	}
	return nil
}

func (f *fakeFeed) Position(ctx context.Context) (scraper.Position, error) {
	if f.idx >= len(f.screens[f.current])-1 {
		return scraper.Position{Bottom: 3000, Height: 3100}, nil
	}
	return scraper.Position{Bottom: 1000, Height: 5000}, nil
}

func post(user string, id int, at time.Time) scraper.RawItem {
	link := fmt.Sprintf("https://x.com/%s/status/%d", user, id)
	return scraper.RawItem{
		Datetime:    at.UTC().Format(time.RFC3339),
		TimeHref:    link,
		StatusHrefs: []string{link},
		Text:        fmt.Sprintf("%s post %d", user, id),
	}
}

func quietScanner() *scraper.FeedScanner {
	s := scraper.NewFeedScanner(utc3)
	s.Pacing = scraper.Pacing{
		Polls: 1,
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	}
	return s
}

func links(records []types.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Link)
	}
	return out
}

var _ = Describe("FeedScanner", func() {
	var (
		ctx     context.Context
		feed    *fakeFeed
		scanner *scraper.FeedScanner
		req     types.ScrapeRequest
		inside  time.Time
		before  time.Time
		after   time.Time
	)

	const profileURL = "https://x.com/alice"

	BeforeEach(func() {
		ctx = context.Background()
		feed = newFakeFeed()
		scanner = quietScanner()
		req = types.ScrapeRequest{
			Targets: []string{"alice"},
			Mode:    types.ModeProfile,
			Start:   time.Date(2024, 5, 1, 0, 0, 0, 0, utc3),
			End:     time.Date(2024, 5, 31, 23, 59, 59, 0, utc3),
		}
		inside = time.Date(2024, 5, 15, 12, 0, 0, 0, utc3)
		before = time.Date(2024, 4, 1, 12, 0, 0, 0, utc3)
		after = time.Date(2024, 6, 15, 12, 0, 0, 0, utc3)
	})

	It("never returns the same permalink twice across overlapping sweeps", func() {
		feed.screens[profileURL] = [][]scraper.RawItem{
			{post("alice", 3, inside), post("alice", 2, inside)},
			{post("alice", 2, inside), post("alice", 1, inside)},
		}

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links(records)).To(Equal([]string{
			"https://x.com/alice/status/3",
			"https://x.com/alice/status/2",
			"https://x.com/alice/status/1",
		}))
	})

	It("normalizes timestamps to the configured zone", func() {
		feed.screens[profileURL] = [][]scraper.RawItem{{post("alice", 1, inside)}}

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Timestamp.Location()).To(Equal(utc3))
		Expect(records[0].Timestamp.Equal(inside)).To(BeTrue())
		Expect(records[0].Username).To(Equal("alice"))
	})

	It("stops after ten consecutive items older than the window", func() {
		screen := []scraper.RawItem{post("alice", 100, inside)}
		for i := 0; i < 10; i++ {
			screen = append(screen, post("alice", 50-i, before))
		}
		screen = append(screen, post("alice", 99, inside))
		feed.screens[profileURL] = [][]scraper.RawItem{screen}

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links(records)).To(Equal([]string{"https://x.com/alice/status/100"}))
		Expect(feed.itemsCalls).To(Equal(1))
		Expect(feed.scrolls).To(BeZero())
	})

	It("resets the too-old run on items newer than the window", func() {
		var screen []scraper.RawItem
		for i := 0; i < 9; i++ {
			screen = append(screen, post("alice", 200+i, before))
		}
		screen = append(screen, post("alice", 300, after))
		for i := 0; i < 9; i++ {
			screen = append(screen, post("alice", 400+i, before))
		}
		screen = append(screen, post("alice", 500, inside))
		feed.screens[profileURL] = [][]scraper.RawItem{screen}

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links(records)).To(Equal([]string{"https://x.com/alice/status/500"}))
	})

	It("terminates once the bottom has been hit more than the stall budget", func() {
		feed.screens[profileURL] = [][]scraper.RawItem{{post("alice", 1, inside)}}

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(feed.scrolls).To(Equal(16))
	})

	It("skips items without a parseable timestamp", func() {
		broken := post("alice", 7, inside)
		broken.Datetime = ""
		feed.screens[profileURL] = [][]scraper.RawItem{{broken, post("alice", 8, inside)}}

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links(records)).To(Equal([]string{"https://x.com/alice/status/8"}))
	})

	It("drops foreign items in profile mode but keeps them in list mode", func() {
		feed.screens[profileURL] = [][]scraper.RawItem{{post("mallory", 1, inside), post("Alice", 2, inside)}}

		records, err := scanner.Scan(ctx, feed, "@alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links(records)).To(Equal([]string{"https://x.com/Alice/status/2"}))

		listURL := "https://x.com/i/lists/9"
		feed.screens[listURL] = [][]scraper.RawItem{{post("mallory", 1, inside), post("alice", 2, inside)}}
		req.Mode = types.ModeList

		records, err = scanner.Scan(ctx, feed, listURL+"/", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
	})

	It("opens the replies surface and keeps only replies to others", func() {
		repliesURL := profileURL + "/with_replies"
		toBob := post("alice", 1, inside)
		toBob.IsReply, toBob.ReplyTo = true, "bob"
		toSelf := post("alice", 2, inside)
		toSelf.IsReply, toSelf.ReplyTo = true, "alice"
		feed.screens[repliesURL] = [][]scraper.RawItem{{toBob, toSelf, post("alice", 3, inside)}}
		req.Mode = types.ModeProfileReplies

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(feed.opened).To(Equal([]string{repliesURL}))
		Expect(links(records)).To(Equal([]string{"https://x.com/alice/status/1"}))
	})

	It("returns the partial result without error when stop is raised mid-sweep", func() {
		feed.screens[profileURL] = [][]scraper.RawItem{{
			post("alice", 1, inside), post("alice", 2, inside), post("alice", 3, inside),
		}}
		count := 0
		obs := types.ObserverFunc(func(p types.Progress) { count = p.Count })
		stop := types.StopFunc(func() bool { return count >= 2 })

		records, err := scanner.Scan(ctx, feed, "alice", req, obs, stop)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(feed.scrolls).To(BeZero())
	})

	It("returns collected records with a NavigationError when the page fails mid-scan", func() {
		feed.screens[profileURL] = [][]scraper.RawItem{
			{post("alice", 1, inside)},
			{post("alice", 2, inside)},
		}
		feed.itemsErrs[2] = errors.New("target closed")

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		var navErr *types.NavigationError
		Expect(errors.As(err, &navErr)).To(BeTrue())
		Expect(navErr.URL).To(Equal(profileURL))
		Expect(records).To(HaveLen(1))
	})

	It("applies the keyword filter", func() {
		match := post("alice", 1, inside)
		match.Text = "Go and Rust"
		feed.screens[profileURL] = [][]scraper.RawItem{{match, post("alice", 2, inside)}}
		req.Keywords = "go,rust;zig"

		records, err := scanner.Scan(ctx, feed, "alice", req, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links(records)).To(Equal([]string{"https://x.com/alice/status/1"}))
	})
})
