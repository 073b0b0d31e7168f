package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/types"
)

var (
	// ErrInvalidRequest wraps every rejected submission
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotReady means the job has not produced what was asked for
	ErrNotReady = errors.New("job result not ready")
)

// ScrapeForm is a scrape submission as entered by the user
type ScrapeForm struct {
	Targets     string `json:"targets"`
	Mode        string `json:"mode"`
	OnlyReplies bool   `json:"only_replies"`
	Keywords    string `json:"keywords"`
	StartDate   string `json:"start_date"`
	StartTime   string `json:"start_time"`
	EndDate     string `json:"end_date"`
	EndTime     string `json:"end_time"`
}

// ScreenshotPayload is the input of a screenshot job
type ScreenshotPayload struct {
	Links []string
}

// RetweetersPayload is the input of a retweeter scan
type RetweetersPayload struct {
	URL         string
	Credentials types.Credentials
}

// BlockPayload is the input of a block job
type BlockPayload struct {
	Handles     []string
	Credentials types.Credentials
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// ScrapeRequest turns the form into a validated request with credentials attached
func (a *App) ScrapeRequest(form ScrapeForm) (types.ScrapeRequest, error) {
	creds, err := a.credentials()
	if err != nil {
		return types.ScrapeRequest{}, err
	}

	mode, err := types.ParseMode(form.Mode)
	if err != nil {
		return types.ScrapeRequest{}, invalid("%v", err)
	}
	if mode == types.ModeProfile && form.OnlyReplies {
		mode = types.ModeProfileReplies
	}

	if form.StartDate == "" || form.EndDate == "" {
		return types.ScrapeRequest{}, invalid("start and end dates are required")
	}
	start, end, err := types.ParseWindow(form.StartDate, form.StartTime, form.EndDate, form.EndTime, a.config.Location())
	if err != nil {
		return types.ScrapeRequest{}, invalid("%v", err)
	}

	req := types.ScrapeRequest{
		Targets:     types.SplitTargets(form.Targets),
		Mode:        mode,
		Keywords:    form.Keywords,
		Start:       start,
		End:         end,
		Credentials: creds,
	}
	if err := req.Validate(); err != nil {
		return types.ScrapeRequest{}, invalid("%v", err)
	}
	return req, nil
}

// SubmitScrape queues a scrape job
func (a *App) SubmitScrape(form ScrapeForm) (string, error) {
	req, err := a.ScrapeRequest(form)
	if err != nil {
		return "", err
	}
	return a.jobs.Submit(jobs.KindScrape, req)
}

// SubmitScreenshot queues a document job for links
func (a *App) SubmitScreenshot(links []string) (string, error) {
	var clean []string
	for _, l := range links {
		if l = strings.TrimSpace(l); l != "" {
			clean = append(clean, l)
		}
	}
	if len(clean) == 0 {
		return "", invalid("at least one link is required")
	}
	return a.jobs.Submit(jobs.KindScreenshot, ScreenshotPayload{Links: clean})
}

// SubmitReport queues a document job for the links of a completed scrape
func (a *App) SubmitReport(scrapeJobID string) (string, error) {
	job, ok := a.jobs.Get(scrapeJobID)
	if !ok {
		return "", jobs.ErrJobNotFound
	}
	res, ok := job.Result.(types.ScrapeResult)
	if job.Kind != jobs.KindScrape || job.Status != jobs.StatusCompleted || !ok {
		return "", fmt.Errorf("%w: %s is not a completed scrape", ErrNotReady, scrapeJobID)
	}
	if len(res.Links) == 0 {
		return "", invalid("scrape %s found no links", scrapeJobID)
	}
	return a.SubmitScreenshot(res.Links)
}

// SubmitRetweeters queues a scan of the accounts that reposted url
func (a *App) SubmitRetweeters(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", invalid("a post link is required")
	}
	creds, err := a.credentials()
	if err != nil {
		return "", err
	}
	return a.jobs.Submit(jobs.KindRetweeters, RetweetersPayload{URL: url, Credentials: creds})
}

// SubmitBlock queues a block job for the handles found by a finished scan.
// A non-empty selection narrows the scan result; handles outside it are ignored.
func (a *App) SubmitBlock(scanJobID string, selection []string) (string, error) {
	job, ok := a.jobs.Get(scanJobID)
	if !ok {
		return "", jobs.ErrJobNotFound
	}
	found, ok := job.Result.([]string)
	if job.Kind != jobs.KindRetweeters || job.Status != jobs.StatusScanCompleted || !ok {
		return "", fmt.Errorf("%w: %s is not a completed scan", ErrNotReady, scanJobID)
	}

	handles := found
	if len(selection) > 0 {
		known := make(map[string]struct{}, len(found))
		for _, h := range found {
			known[strings.ToLower(h)] = struct{}{}
		}
		handles = nil
		for _, h := range selection {
			if _, ok := known[strings.ToLower(strings.TrimPrefix(h, "@"))]; ok {
				handles = append(handles, strings.TrimPrefix(h, "@"))
			}
		}
	}
	if len(handles) == 0 {
		return "", invalid("no accounts to block")
	}

	creds, err := a.credentials()
	if err != nil {
		return "", err
	}
	return a.jobs.Submit(jobs.KindBlock, BlockPayload{Handles: handles, Credentials: creds})
}

// Stop requests a cooperative stop of a job
func (a *App) Stop(id string) error {
	return a.jobs.RequestStop(id)
}
