package blocker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ibeckermayer/xharvest/internal/blocker"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// fakeRoster returns sweeps[i] on the i-th Hrefs call, repeating the last sweep
type fakeRoster struct {
	sweeps    [][]string
	waitErr   error
	hrefsErr  map[int]error
	opened    []string
	hrefCalls int
	scrolls   int
}

func (r *fakeRoster) Open(ctx context.Context, url string) error {
	r.opened = append(r.opened, url)
	return nil
}

func (r *fakeRoster) WaitForCells(ctx context.Context, timeout time.Duration) error {
	return r.waitErr
}

func (r *fakeRoster) Hrefs(ctx context.Context) ([]string, error) {
	r.hrefCalls++
	if err := r.hrefsErr[r.hrefCalls]; err != nil {
		return nil, err
	}
	if len(r.sweeps) == 0 {
		return nil, nil
	}
	i := min(r.hrefCalls-1, len(r.sweeps)-1)
	return r.sweeps[i], nil
}

func (r *fakeRoster) ScrollToEnd(ctx context.Context) error {
	r.scrolls++
	return nil
}

func hrefs(handles ...string) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		out = append(out, "/"+h)
	}
	return out
}

var _ = Describe("RetweeterScanner", func() {
	var (
		ctx     context.Context
		scanner *blocker.RetweeterScanner
	)

	BeforeEach(func() {
		ctx = context.Background()
		scanner = blocker.NewRetweeterScanner()
		scanner.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	})

	It("opens the reposts view of the post", func() {
		roster := &fakeRoster{}
		_, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1/?s=20", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(roster.opened).To(Equal([]string{"https://x.com/alice/status/1/retweets"}))
	})

	It("filters non-profile links and returns sorted handles", func() {
		roster := &fakeRoster{sweeps: [][]string{{
			"/zed", "/home", "/alice/status/1", "https://x.com/bob", "/explore", "/Carl", "/zed",
			"https://x.com/i/lists/1", "https://t.co/abc",
		}}}

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(handles).To(Equal([]string{"Carl", "bob", "zed"}))
	})

	It("stops after three unchanged sweeps while fewer than five accounts are known", func() {
		roster := &fakeRoster{sweeps: [][]string{hrefs("a", "b")}}

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(handles).To(HaveLen(2))
		Expect(roster.hrefCalls).To(Equal(4))
	})

	It("allows ten unchanged sweeps once five or more accounts are known", func() {
		roster := &fakeRoster{sweeps: [][]string{hrefs("a", "b", "c", "d", "e", "f")}}

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(handles).To(HaveLen(6))
		Expect(roster.hrefCalls).To(Equal(11))
	})

	It("resets the no-change count when the list grows", func() {
		roster := &fakeRoster{sweeps: [][]string{
			hrefs("a"),
			hrefs("a"),
			hrefs("a", "b"),
		}}

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(handles).To(Equal([]string{"a", "b"}))
		Expect(roster.hrefCalls).To(Equal(6))
	})

	It("reports the running count after every sweep", func() {
		roster := &fakeRoster{sweeps: [][]string{hrefs("a"), hrefs("a", "b")}}
		var counts []int
		obs := types.ObserverFunc(func(p types.Progress) { counts = append(counts, p.Count) })

		_, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", obs, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts).To(Equal([]int{1, 2, 2, 2, 2}))
	})

	It("keeps scanning when the initial wait times out", func() {
		roster := &fakeRoster{waitErr: errors.New("no cells"), sweeps: [][]string{hrefs("a")}}

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(handles).To(Equal([]string{"a"}))
	})

	It("checks the stop signal before every sweep", func() {
		roster := &fakeRoster{sweeps: [][]string{hrefs("a", "b", "c", "d", "e", "f")}}
		stopped := false
		obs := types.ObserverFunc(func(types.Progress) { stopped = true })

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", obs, func() bool { return stopped })
		Expect(err).NotTo(HaveOccurred())
		Expect(handles).To(HaveLen(6))
		Expect(roster.hrefCalls).To(Equal(1))
	})

	It("returns what it has with a NavigationError when the page fails", func() {
		roster := &fakeRoster{
			sweeps:   [][]string{hrefs("a"), hrefs("a", "b")},
			hrefsErr: map[int]error{2: errors.New("target closed")},
		}

		handles, err := scanner.Scan(ctx, roster, "https://x.com/alice/status/1", nil, nil)
		Expect(err).To(BeAssignableToTypeOf(&types.NavigationError{}))
		Expect(handles).To(Equal([]string{"a"}))
	})
})

var _ = Describe("HandleFromHref", func() {
	DescribeTable("extracts handles",
		func(href, want string, ok bool) {
			got, gotOK := blocker.HandleFromHref(href)
			Expect(gotOK).To(Equal(ok))
			Expect(got).To(Equal(want))
		},
		Entry("relative", "/alice", "alice", true),
		Entry("absolute", "https://x.com/alice", "alice", true),
		Entry("nested path", "/alice/followers", "alice", true),
		Entry("status link", "/alice/status/1", "", false),
		Entry("denylisted", "/Notifications", "", false),
		Entry("other host", "https://t.co/abc", "", false),
		Entry("empty", "", "", false),
	)
})
