package jobs

import "errors"

var (
	// ErrQueueFull is returned when a category's queue cannot take another job
	ErrQueueFull = errors.New("queue is full")

	// ErrJobNotFound is returned when a job id is unknown or already cleaned up
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJobType is returned when no handler is registered for a kind
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrJobFinished is returned when stopping a job that already reached a terminal status
	ErrJobFinished = errors.New("job already finished")

	// ErrStoppedBeforeStart is the failure of a job stopped while still queued
	ErrStoppedBeforeStart = errors.New("stopped before start")
)
