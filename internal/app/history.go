package app

import (
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/store"
	"github.com/ibeckermayer/xharvest/internal/types"
)

// recordHistory writes a finished job to the history store. Failures are only logged.
func (a *App) recordHistory(job jobs.Job) {
	if a.history == nil {
		return
	}
	log := logrus.WithFields(logrus.Fields{"job": job.ID, "kind": job.Kind})

	row := store.JobRecord{
		ID:         job.ID,
		Kind:       string(job.Kind),
		Status:     string(job.Status),
		Error:      job.Error,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.UpdatedAt,
	}

	var saveItems func() error
	switch res := job.Result.(type) {
	case types.ScrapeResult:
		row.ItemCount = res.Count
		saveItems = func() error { return a.history.SaveRecords(job.ID, res.Records) }
	case types.DocumentResult:
		row.ItemCount = res.Count
	case []string:
		row.ItemCount = len(res)
	case types.BlockReport:
		row.ItemCount = res.Processed
		saveItems = func() error { return a.history.SaveBlockOutcomes(job.ID, res.Outcomes) }
	}

	if err := a.history.SaveJob(row); err != nil {
		log.Warnf("Failed to save job history: %v", err)
		return
	}
	if saveItems != nil {
		if err := saveItems(); err != nil {
			log.Warnf("Failed to save job items: %v", err)
		}
	}
}
