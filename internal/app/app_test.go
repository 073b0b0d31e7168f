package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/blocker"
	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/browser/browsertest"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/report"
	"github.com/ibeckermayer/xharvest/internal/scheduler"
	"github.com/ibeckermayer/xharvest/internal/scraper"
	"github.com/ibeckermayer/xharvest/internal/store"
	"github.com/ibeckermayer/xharvest/internal/types"
)

const homeMarker = `a[data-testid="AppTabBar_Home_Link"]`

// stubFeed serves fixed items per opened URL and always reports the bottom
type stubFeed struct {
	items   map[string][]scraper.RawItem
	current string
}

func (f *stubFeed) Open(ctx context.Context, url string) (bool, error) {
	f.current = url
	return true, nil
}

func (f *stubFeed) Items(ctx context.Context) ([]scraper.RawItem, error) {
	return f.items[f.current], nil
}

func (f *stubFeed) LastItemText(ctx context.Context) (string, error) { return "", nil }

func (f *stubFeed) ScrollBy(ctx context.Context, fraction float64) error { return nil }

func (f *stubFeed) Position(ctx context.Context) (scraper.Position, error) {
	return scraper.Position{Bottom: 1000, Height: 1000}, nil
}

// stubRoster returns the same hrefs on every sweep
type stubRoster struct {
	hrefs []string
}

func (r *stubRoster) Open(ctx context.Context, url string) error { return nil }

func (r *stubRoster) WaitForCells(ctx context.Context, timeout time.Duration) error { return nil }

func (r *stubRoster) Hrefs(ctx context.Context) ([]string, error) { return r.hrefs, nil }

func (r *stubRoster) ScrollToEnd(ctx context.Context) error { return nil }

// loggedInPage is home-authenticated and renders blockable profiles
func loggedInPage() *browsertest.Page {
	page := browsertest.New()
	page.OnNavigate = func(p *browsertest.Page, url string) {
		p.Present = map[string]bool{homeMarker: true}
		if strings.HasPrefix(url, blocker.BaseURL+"/") && url != auth.HomeURL {
			p.Show(`[data-testid="UserProfileHeader_Items"]`, blocker.UserActions)
		}
	}
	page.OnClick[blocker.UserActions] = func(p *browsertest.Page) { p.Show(`[data-testid="block"]`) }
	page.OnClick[`[data-testid="block"]`] = func(p *browsertest.Page) { p.Show(blocker.ConfirmButton) }
	return page
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

var _ = Describe("App", func() {
	var (
		home    string
		cfg     *config.Config
		page    *browsertest.Page
		history *store.Store
		creds   func() (types.Credentials, error)
		service *httptest.Server
		a       *App
	)

	validCreds := func() (types.Credentials, error) {
		return types.Credentials{Username: "user", Password: "secret"}, nil
	}

	build := func() {
		launch, _ := browsertest.Launcher(page)
		a = New(Options{Config: cfg, Launch: launch, History: history, Credentials: creds})

		a.runner.Scanner.Pacing.Sleep = noSleep
		a.runner.Scanner.Pacing.Polls = 1
		a.retweeters.Sleep = noSleep
		a.blocker.Sleep = noSleep
		a.blocker.RetryDelay = 0
		a.blocker.MinDelay, a.blocker.MaxDelay = 0, 0
		a.newFeed = func(browser.Page) scraper.Feed {
			return &stubFeed{items: map[string][]scraper.RawItem{
				"https://x.com/alice": {
					{Datetime: "2024-05-01T09:00:00.000Z", TimeHref: "https://x.com/alice/status/2", Text: "in window"},
					{Datetime: "2024-04-01T09:00:00.000Z", TimeHref: "https://x.com/alice/status/1", Text: "too old"},
				},
			}}
		}
		a.newRoster = func(browser.Page) blocker.Roster {
			return &stubRoster{hrefs: []string{"/carol", "/bob", "/home", "/bob/status/5"}}
		}
	}

	start := func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(a.Run(ctx)).To(Succeed())
		}()
		DeferCleanup(func() {
			cancel()
			Eventually(done, "5s").Should(BeClosed())
		})
	}

	statusOf := func(id string) func() jobs.Status {
		return func() jobs.Status {
			st, err := a.Status(id)
			Expect(err).NotTo(HaveOccurred())
			return st.Status
		}
	}

	BeforeEach(func() {
		home = GinkgoT().TempDir()
		Expect(os.Setenv("XHARVEST_HOME", home)).To(Succeed())
		DeferCleanup(os.Unsetenv, "XHARVEST_HOME")

		service = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("DOCX"))
		}))
		DeferCleanup(service.Close)

		cfg = config.Default()
		cfg.Report.ServiceURL = service.URL
		page = loggedInPage()
		creds = validCreds

		var err error
		history, err = store.New(filepath.Join(home, "history.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(history.Close)
	})

	Describe("scrape submissions", func() {
		form := ScrapeForm{
			Targets:   "alice",
			Mode:      "profile",
			StartDate: "2024-05-01",
			EndDate:   "2024-05-01",
		}

		It("surfaces missing credentials without queueing", func() {
			creds = func() (types.Credentials, error) { return types.Credentials{}, config.ErrMissingCredentials }
			build()

			_, err := a.SubmitScrape(form)
			Expect(errors.Is(err, config.ErrMissingCredentials)).To(BeTrue())
		})

		It("rejects malformed windows and unknown modes", func() {
			build()

			bad := form
			bad.EndDate = "2024-04-30"
			_, err := a.SubmitScrape(bad)
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())

			bad = form
			bad.StartDate = "01-05-2024"
			_, err = a.SubmitScrape(bad)
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())

			bad = form
			bad.Mode = "search"
			_, err = a.SubmitScrape(bad)
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())

			bad = form
			bad.Targets = " , "
			_, err = a.SubmitScrape(bad)
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
		})

		It("turns the replies flag into the replies mode and keeps the whole end minute", func() {
			build()

			f := form
			f.OnlyReplies = true
			f.EndTime = "18:30"
			req, err := a.ScrapeRequest(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Mode).To(Equal(types.ModeProfileReplies))
			Expect(req.Credentials.Username).To(Equal("user"))
			Expect(req.End.Location().String()).To(Equal("UTC+3"))
			Expect(req.End.Hour()).To(Equal(18))
			Expect(req.End.Minute()).To(Equal(30))
			Expect(req.End.Second()).To(Equal(59))
		})

		It("runs a scrape to a downloadable workbook and records it", func() {
			build()
			start()

			id, err := a.SubmitScrape(form)
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(id), "10s").Should(Equal(jobs.StatusCompleted))

			st, err := a.Status(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Count).To(Equal(1))
			Expect(st.Links).To(Equal([]string{"https://x.com/alice/status/2"}))
			Expect(st.Redirect).To(Equal("/jobs/" + id + "/download"))

			dl, err := a.Download(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(dl.Name).To(Equal("links_" + id[:8] + ".xlsx"))
			Expect(dl.ContentType).To(Equal(XLSXContentType))
			Expect(dl.Data).NotTo(BeEmpty())

			Expect(page.Navigations).To(ContainElement(auth.HomeURL))

			Eventually(func() ([]types.Record, error) { return history.RecordsForJob(id) }, "5s").Should(HaveLen(1))
			recs, err := history.RecordsForJob(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs[0].Timestamp.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))).To(BeTrue())
			recent, err := history.RecentJobs(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(recent[0].ID).To(Equal(id))
			Expect(recent[0].ItemCount).To(Equal(1))
		})

		It("fails the job when the browser cannot start", func() {
			page = nil
			launch := browser.Launcher(func(ctx context.Context, opts browser.Options) (browser.Page, error) {
				return nil, errors.New("chrome not found")
			})
			a = New(Options{Config: cfg, Launch: launch, Credentials: creds})
			start()

			id, err := a.SubmitScrape(form)
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(id), "5s").Should(Equal(jobs.StatusFailed))
			st, _ := a.Status(id)
			Expect(st.Error).To(ContainSubstring("chrome not found"))

			_, err = a.Download(id)
			Expect(errors.Is(err, ErrNotReady)).To(BeTrue())
		})
	})

	Describe("screenshot jobs", func() {
		It("requires at least one link", func() {
			build()
			_, err := a.SubmitScreenshot([]string{" ", ""})
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
		})

		It("builds a document for the links of a finished scrape", func() {
			build()
			start()

			scrapeID, err := a.SubmitScrape(ScrapeForm{Targets: "alice", StartDate: "2024-05-01", EndDate: "2024-05-01"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(scrapeID), "10s").Should(Equal(jobs.StatusCompleted))

			id, err := a.SubmitReport(scrapeID)
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(id), "5s").Should(Equal(jobs.StatusCompleted))

			dl, err := a.Download(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(dl.Name).To(HaveSuffix(".docx"))
			Expect(dl.ContentType).To(Equal(DOCXContentType))
			Expect(string(dl.Data)).To(Equal("DOCX"))
		})

		It("reads the service progress file while the document renders", func() {
			release := make(chan struct{})
			var got struct {
				URLs  []string `json:"urls"`
				JobID string   `json:"jobId"`
			}
			slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&got)
				<-release
				w.Write([]byte("DOCX"))
			}))
			DeferCleanup(slow.Close)
			DeferCleanup(func() {
				select {
				case <-release:
				default:
					close(release)
				}
			})
			cfg.Report.ServiceURL = slow.URL
			build()
			start()

			id, err := a.SubmitScreenshot([]string{"https://x.com/a/status/1", "https://x.com/b/status/2"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(id), "5s").Should(Equal(jobs.StatusRunning))

			dir := filepath.Join(home, cfg.Report.ProgressDir)
			Expect(os.MkdirAll(dir, 0o700)).To(Succeed())
			Expect(os.WriteFile(report.ProgressPath(dir, id), []byte(`{"current":1,"total":2,"last_url":"https://x.com/a/status/1"}`), 0o600)).To(Succeed())

			st, err := a.Status(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Progress).NotTo(BeNil())
			Expect(st.Progress.Current).To(Equal(1))
			Expect(st.Progress.Total).To(Equal(2))

			close(release)
			Eventually(statusOf(id), "5s").Should(Equal(jobs.StatusCompleted))
			Expect(got.JobID).To(Equal(id))
			Expect(got.URLs).To(HaveLen(2))
			Expect(report.ProgressPath(dir, id)).NotTo(BeAnExistingFile())
		})

		It("refuses reports for unknown or unfinished scrapes", func() {
			build()
			_, err := a.SubmitReport("missing")
			Expect(errors.Is(err, jobs.ErrJobNotFound)).To(BeTrue())

			id, err := a.SubmitScrape(ScrapeForm{Targets: "alice", StartDate: "2024-05-01", EndDate: "2024-05-01"})
			Expect(err).NotTo(HaveOccurred())
			_, err = a.SubmitReport(id)
			Expect(errors.Is(err, ErrNotReady)).To(BeTrue())
		})
	})

	Describe("retweeter scans and blocking", func() {
		It("scans, then blocks the selected accounts", func() {
			build()
			start()

			scanID, err := a.SubmitRetweeters("https://x.com/alice/status/1")
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(scanID), "5s").Should(Equal(jobs.StatusScanCompleted))

			st, err := a.Status(scanID)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Handles).To(Equal([]string{"bob", "carol"}))
			Expect(st.Count).To(Equal(2))
			Expect(st.Redirect).To(Equal("/jobs/" + scanID + "/block"))

			blockID, err := a.SubmitBlock(scanID, []string{"@Bob", "mallory"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(blockID), "5s").Should(Equal(jobs.StatusCompleted))

			st, err = a.Status(blockID)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Progress).NotTo(BeNil())
			Expect(st.Progress.Total).To(Equal(1))
			Expect(st.Progress.Success).To(Equal(1))
			Expect(page.Navigations).To(ContainElement("https://x.com/Bob"))

			Eventually(func() ([]types.HandleOutcome, error) { return history.OutcomesForJob(blockID) }, "5s").
				Should(Equal([]types.HandleOutcome{{Handle: "Bob", Outcome: types.OutcomeBlocked}}))
		})

		It("blocks every scanned account when nothing is selected", func() {
			build()
			start()

			scanID, err := a.SubmitRetweeters("https://x.com/alice/status/1")
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(scanID), "5s").Should(Equal(jobs.StatusScanCompleted))

			blockID, err := a.SubmitBlock(scanID, nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(blockID), "5s").Should(Equal(jobs.StatusCompleted))

			job, _ := a.Jobs().Get(blockID)
			rep := job.Result.(types.BlockReport)
			Expect(rep.Processed).To(Equal(2))
			Expect(rep.Succeeded).To(Equal(2))
		})

		It("validates block submissions", func() {
			build()
			_, err := a.SubmitBlock("missing", nil)
			Expect(errors.Is(err, jobs.ErrJobNotFound)).To(BeTrue())

			scanID, err := a.SubmitRetweeters("https://x.com/alice/status/1")
			Expect(err).NotTo(HaveOccurred())
			_, err = a.SubmitBlock(scanID, nil)
			Expect(errors.Is(err, ErrNotReady)).To(BeTrue())

			_, err = a.SubmitRetweeters("  ")
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
		})

		It("stops a queued scan before it starts", func() {
			build()

			scanID, err := a.SubmitRetweeters("https://x.com/alice/status/1")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Stop(scanID)).To(Succeed())

			start()
			Eventually(statusOf(scanID), "5s").Should(Equal(jobs.StatusFailed))
			st, _ := a.Status(scanID)
			Expect(st.Error).To(Equal("stopped before start"))
		})
	})

	Describe("maintenance tasks", func() {
		It("schedules the job cleanup and runs it on demand", func() {
			build()
			start()

			tasks := a.Tasks()
			Expect(tasks).To(HaveLen(1))
			Expect(tasks[0].Name).To(Equal(CleanupTask))
			Eventually(func() time.Time { return a.Tasks()[0].NextRun }, "2s").ShouldNot(BeZero())

			id, err := a.SubmitRetweeters("https://x.com/alice/status/1")
			Expect(err).NotTo(HaveOccurred())
			Eventually(statusOf(id), "5s").Should(Equal(jobs.StatusScanCompleted))

			Expect(a.RunTask(context.Background(), CleanupTask)).To(Succeed())
			_, err = a.Status(id)
			Expect(err).NotTo(HaveOccurred(), "finished jobs stay within the retention window")

			err = a.RunTask(context.Background(), "nope")
			Expect(errors.Is(err, scheduler.ErrUnknownTask)).To(BeTrue())
		})
	})
})
