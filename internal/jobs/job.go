// Package jobs queues long-running browser work and tracks its status.
// Each category has one FIFO queue drained by exactly one worker, so jobs
// sharing a browser session never overlap.
package jobs

import (
	"time"

	"github.com/ibeckermayer/xharvest/internal/types"
)

type Status string

const (
	StatusQueued        Status = "queued"
	StatusRunning       Status = "running"
	StatusScanning      Status = "scanning"
	StatusBlocking      Status = "blocking"
	StatusCompleted     Status = "completed"
	StatusScanCompleted Status = "scan_completed"
	StatusFailed        Status = "failed"
)

// Terminal statuses never change again
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusScanCompleted, StatusFailed:
		return true
	}
	return false
}

type Kind string

const (
	KindScrape     Kind = "scrape"
	KindScreenshot Kind = "screenshot"
	KindRetweeters Kind = "retweeters"
	KindBlock      Kind = "block"
)

// Category names a worker and the browser session it owns
type Category string

const (
	CategoryScraper Category = "scraper"
	CategoryBlocker Category = "blocker"
)

// Statuses are the non-terminal and success statuses a kind reports
type Statuses struct {
	Running Status
	Done    Status
}

// DefaultStatuses suit kinds with no dedicated phase names
var DefaultStatuses = Statuses{Running: StatusRunning, Done: StatusCompleted}

// Job is a snapshot of one unit of work
type Job struct {
	ID            string         `json:"id"`
	Kind          Kind           `json:"kind"`
	Category      Category       `json:"category"`
	Status        Status         `json:"status"`
	Progress      types.Progress `json:"progress"`
	Result        any            `json:"-"`
	Error         string         `json:"error,omitempty"`
	StopRequested bool           `json:"stop_requested"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
