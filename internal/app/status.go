package app

import (
	"fmt"

	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/report"
	"github.com/ibeckermayer/xharvest/internal/types"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	DOCXContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Status is what a client polls while a job runs
type Status struct {
	ID       string          `json:"id"`
	Kind     jobs.Kind       `json:"kind"`
	Status   jobs.Status     `json:"status"`
	Progress *types.Progress `json:"progress,omitempty"`
	Error    string          `json:"error,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
	Count    int             `json:"count,omitempty"`
	Handles  []string        `json:"handles,omitempty"`
	Links    []string        `json:"links,omitempty"`
}

// Status reports a job. A running screenshot job with no progress of its own
// falls back to the progress file of the screenshot service.
func (a *App) Status(id string) (Status, error) {
	job, ok := a.jobs.Get(id)
	if !ok {
		return Status{}, jobs.ErrJobNotFound
	}

	st := Status{ID: job.ID, Kind: job.Kind, Status: job.Status, Error: job.Error}
	if job.Progress != (types.Progress{}) {
		p := job.Progress
		st.Progress = &p
	} else if job.Kind == jobs.KindScreenshot && job.Status == jobs.StatusRunning {
		if p, err := report.ReadProgress(config.Resolve(a.config.Report.ProgressDir), id); err == nil {
			st.Progress = &p
		}
	}

	switch res := job.Result.(type) {
	case types.ScrapeResult:
		st.Count = res.Count
		st.Links = res.Links
	case types.DocumentResult:
		st.Count = res.Count
	case []string:
		st.Count = len(res)
		st.Handles = res
	case types.BlockReport:
		st.Count = res.Succeeded
	}

	switch job.Status {
	case jobs.StatusCompleted:
		if job.Kind == jobs.KindScrape || job.Kind == jobs.KindScreenshot {
			st.Redirect = fmt.Sprintf("/jobs/%s/download", id)
		}
	case jobs.StatusScanCompleted:
		st.Redirect = fmt.Sprintf("/jobs/%s/block", id)
	}
	return st, nil
}

// Download is a finished job's file
type Download struct {
	Name        string
	ContentType string
	Data        []byte
}

// Download returns the workbook of a scrape or the document of a screenshot job
func (a *App) Download(id string) (Download, error) {
	job, ok := a.jobs.Get(id)
	if !ok {
		return Download{}, jobs.ErrJobNotFound
	}
	if job.Status != jobs.StatusCompleted {
		return Download{}, fmt.Errorf("%w: %s is %s", ErrNotReady, id, job.Status)
	}

	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	switch res := job.Result.(type) {
	case types.ScrapeResult:
		if len(res.Workbook) == 0 {
			return Download{}, fmt.Errorf("%w: scrape %s collected nothing", ErrNotReady, id)
		}
		return Download{Name: fmt.Sprintf("links_%s.xlsx", short), ContentType: XLSXContentType, Data: res.Workbook}, nil
	case types.DocumentResult:
		return Download{Name: fmt.Sprintf("report_%s.docx", short), ContentType: DOCXContentType, Data: res.Document}, nil
	}
	return Download{}, fmt.Errorf("%w: %s has no file", ErrNotReady, id)
}
