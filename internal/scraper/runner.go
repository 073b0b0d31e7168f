package scraper

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Sink writes collected records. With a path it writes to disk and returns no buffer.
type Sink interface {
	Write(records []types.Record, path string) (int, []types.Record, []byte, error)
}

// Runner scans every target of a request and exports the merged records
type Runner struct {
	Scanner *FeedScanner
	Sink    Sink
	// OutputPath is passed to the sink; empty keeps the workbook in memory
	OutputPath string
}

func NewRunner(scanner *FeedScanner, sink Sink) *Runner {
	return &Runner{Scanner: scanner, Sink: sink}
}

// Run isolates target failures: a failing target keeps its partial records and the run continues.
// A permalink collected from an earlier target is not exported again.
func (r *Runner) Run(ctx context.Context, feed Feed, req types.ScrapeRequest, obs types.Observer, stop types.StopFunc) (types.ScrapeResult, error) {
	if obs == nil {
		obs = types.Discard
	}
	started := time.Now()
	log := logrus.WithField("mode", req.Mode)

	var all []types.Record
	seen := make(map[string]struct{})
	for i, target := range req.Targets {
		if stop.Stopped() {
			break
		}

		log.Infof("[%d/%d] Scanning %s", i+1, len(req.Targets), target)
		obs.Observe(types.Progress{Phase: "target", Current: i + 1, Total: len(req.Targets), Count: len(all), LastItem: target})

		base := len(all)
		perTarget := types.ObserverFunc(func(p types.Progress) {
			p.Current, p.Total = i+1, len(req.Targets)
			p.Count += base
			obs.Observe(p)
		})

		records, err := r.Scanner.Scan(ctx, feed, target, req, perTarget, stop)
		if err != nil {
			log.WithField("target", target).Errorf("Scan failed, keeping %d records: %v", len(records), err)
		}

		fresh := records[:0]
		for _, rec := range records {
			if _, dup := seen[rec.Link]; dup {
				continue
			}
			seen[rec.Link] = struct{}{}
			fresh = append(fresh, rec)
		}
		if dropped := len(records) - len(fresh); dropped > 0 {
			log.WithField("target", target).Debugf("Dropped %d posts already collected from earlier targets", dropped)
		}

		SortByDate(fresh)
		all = append(all, fresh...)
		log.Infof("Collected %d posts from %s", len(fresh), target)
	}

	if req.Mode == types.ModeList {
		SortByUser(all)
	}

	if !stop.Stopped() {
		if _, err := feed.Open(ctx, HomeURL); err != nil {
			log.Debugf("Failed to return to home: %v", err)
		}
	}

	result := types.ScrapeResult{Mode: req.Mode}
	if len(all) > 0 && r.Sink != nil {
		count, kept, buf, err := r.Sink.Write(all, r.OutputPath)
		if err != nil {
			return result, err
		}
		result.Count = count
		result.Records = kept
		result.Workbook = buf
	} else {
		result.Count = len(all)
		result.Records = all
	}
	for _, rec := range result.Records {
		result.Links = append(result.Links, rec.Link)
	}
	result.Elapsed = time.Since(started)

	log.Infof("Scrape finished: %d posts in %s", result.Count, result.Elapsed.Round(time.Second))
	return result, nil
}

// SortByDate orders records oldest first, keeping discovery order for equal times
func SortByDate(records []types.Record) {
	slices.SortStableFunc(records, func(a, b types.Record) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// SortByUser groups records by lower-cased username, oldest first within a user
func SortByUser(records []types.Record) {
	slices.SortStableFunc(records, func(a, b types.Record) int {
		if c := cmp.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username)); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})
}
