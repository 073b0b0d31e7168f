package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/auth"
	"github.com/ibeckermayer/xharvest/internal/blocker"
	"github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/export"
	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/report"
	"github.com/ibeckermayer/xharvest/internal/scheduler"
	"github.com/ibeckermayer/xharvest/internal/scraper"
	"github.com/ibeckermayer/xharvest/internal/store"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// CleanupTask drops finished jobs past the retention window
const CleanupTask = "jobs-cleanup"

const cleanupInterval = time.Hour

// App binds the engines to the job server. Each scraping context owns one
// browser session slot driven only by its category's worker.
type App struct {
	config *config.Config
	jobs   *jobs.Server
	sched  *scheduler.Scheduler

	scraperSession *auth.Manager
	blockerSession *auth.Manager

	runner     *scraper.Runner
	retweeters *blocker.RetweeterScanner
	blocker    *blocker.AccountBlocker
	report     *report.Client
	history    *store.Store

	credentials func() (types.Credentials, error)
	newFeed     func(browser.Page) scraper.Feed
	newRoster   func(browser.Page) blocker.Roster
}

// Options carries what New cannot build from the config alone
type Options struct {
	Config *config.Config
	// Launch starts browser sessions; nil uses the real browser
	Launch browser.Launcher
	// History is optional
	History *store.Store
	// Credentials overrides reading the configured credential file
	Credentials func() (types.Credentials, error)
}

// New creates a new App instance.
func New(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	launch := opts.Launch
	if launch == nil {
		launch = browser.Launch
	}

	cookies := auth.NewCookieStore(config.Resolve(cfg.Files.Cookies))
	scraperOpts := browser.Options{
		Headless:    cfg.Browser.Headless,
		ProfileDir:  config.Resolve(cfg.Browser.ScraperProfileDir),
		ChromeMajor: cfg.Browser.ChromeMajor,
	}
	blockerOpts := scraperOpts
	blockerOpts.ProfileDir = config.Resolve(cfg.Browser.BlockerProfileDir)

	minDelay, maxDelay := cfg.BlockDelay()

	a := &App{
		config:         cfg,
		jobs:           jobs.NewServer(cfg.Jobs.QueueSize, cfg.Retention()),
		sched:          scheduler.New(cfg.Location()),
		scraperSession: auth.NewManager(string(jobs.CategoryScraper), launch, scraperOpts, cookies),
		blockerSession: auth.NewManager(string(jobs.CategoryBlocker), launch, blockerOpts, cookies, auth.WithCookieImport()),
		runner:         scraper.NewRunner(scraper.NewFeedScanner(cfg.Location()), export.NewWorkbook()),
		retweeters:     blocker.NewRetweeterScanner(),
		blocker:        blocker.NewAccountBlocker(minDelay, maxDelay),
		report:         report.NewClient(cfg.Report.ServiceURL),
		history:        opts.History,
		credentials:    opts.Credentials,
		newFeed:        func(p browser.Page) scraper.Feed { return scraper.NewChromeFeed(p) },
		newRoster:      func(p browser.Page) blocker.Roster { return blocker.NewChromeRoster(p) },
	}
	if a.credentials == nil {
		path := config.Resolve(cfg.Files.Credentials)
		a.credentials = func() (types.Credentials, error) { return config.LoadCredentials(path) }
	}

	a.jobs.Register(jobs.KindScrape, jobs.CategoryScraper, a.runScrape, jobs.DefaultStatuses)
	a.jobs.Register(jobs.KindScreenshot, jobs.CategoryScraper, a.runScreenshot, jobs.DefaultStatuses)
	a.jobs.Register(jobs.KindRetweeters, jobs.CategoryBlocker, a.runRetweeters,
		jobs.Statuses{Running: jobs.StatusScanning, Done: jobs.StatusScanCompleted})
	a.jobs.Register(jobs.KindBlock, jobs.CategoryBlocker, a.runBlock,
		jobs.Statuses{Running: jobs.StatusBlocking, Done: jobs.StatusCompleted})
	a.jobs.OnFinish(a.recordHistory)

	if err := a.sched.AddEvery(CleanupTask, cleanupInterval, a.cleanup); err != nil {
		logrus.Errorf("Failed to schedule %s: %v", CleanupTask, err)
	}

	return a
}

// Jobs exposes the job server
func (a *App) Jobs() *jobs.Server { return a.jobs }

// Run drives the job workers and the maintenance schedule until ctx is done
func (a *App) Run(ctx context.Context) error {
	a.sched.Start()
	defer func() { <-a.sched.Stop().Done() }()
	defer a.Close()

	logrus.Info("Job workers starting")
	return a.jobs.Run(ctx)
}

// Tasks lists the maintenance tasks and their next run
func (a *App) Tasks() []scheduler.JobInfo { return a.sched.ListJobs() }

// RunTask runs a maintenance task immediately
func (a *App) RunTask(ctx context.Context, name string) error {
	return a.sched.RunNow(ctx, name)
}

func (a *App) cleanup(ctx context.Context) error {
	a.jobs.Cleanup()
	return nil
}

// Close quits both browser sessions
func (a *App) Close() {
	a.scraperSession.Close()
	a.blockerSession.Close()
}
