package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/report"
	"github.com/ibeckermayer/xharvest/internal/types"
)

func (a *App) runScrape(ctx context.Context, run *jobs.Run) (any, error) {
	req, ok := run.Payload.(types.ScrapeRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected scrape payload %T", run.Payload)
	}

	page, err := a.scraperSession.Acquire(ctx, req.Credentials)
	if err != nil {
		return nil, err
	}
	return a.runner.Run(ctx, a.newFeed(page), req, run, run.StopFunc())
}

func (a *App) runScreenshot(ctx context.Context, run *jobs.Run) (any, error) {
	payload, ok := run.Payload.(ScreenshotPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected screenshot payload %T", run.Payload)
	}

	dir := config.Resolve(a.config.Report.ProgressDir)
	defer func() {
		if err := report.RemoveProgress(dir, run.ID); err != nil {
			logrus.WithField("job", run.ID).Debugf("Failed to remove progress file: %v", err)
		}
	}()

	started := time.Now()
	doc, err := a.report.Generate(ctx, payload.Links, run.ID)
	if err != nil {
		return nil, err
	}
	return types.DocumentResult{
		Count:    len(payload.Links),
		Elapsed:  time.Since(started),
		Links:    payload.Links,
		Document: doc,
	}, nil
}

func (a *App) runRetweeters(ctx context.Context, run *jobs.Run) (any, error) {
	payload, ok := run.Payload.(RetweetersPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected retweeters payload %T", run.Payload)
	}

	page, err := a.blockerSession.Acquire(ctx, payload.Credentials)
	if err != nil {
		return nil, err
	}
	run.Observe(types.Progress{Phase: "scanning"})
	return a.retweeters.Scan(ctx, a.newRoster(page), payload.URL, run, run.StopFunc())
}

func (a *App) runBlock(ctx context.Context, run *jobs.Run) (any, error) {
	payload, ok := run.Payload.(BlockPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected block payload %T", run.Payload)
	}

	run.Observe(types.Progress{Phase: "blocking", Total: len(payload.Handles)})
	page, err := a.blockerSession.Acquire(ctx, payload.Credentials)
	if err != nil {
		return nil, err
	}
	return a.blocker.Block(ctx, page, payload.Handles, run, run.StopFunc())
}
