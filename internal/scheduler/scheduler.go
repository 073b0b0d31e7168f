package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const taskTimeout = 30 * time.Minute

// ErrUnknownTask is returned by RunNow for a name that was never scheduled
var ErrUnknownTask = errors.New("unknown task")

// Task is a periodic maintenance function
type Task func(ctx context.Context) error

type scheduled struct {
	id   cron.EntryID
	task Task
}

// Scheduler manages periodic tasks
type Scheduler struct {
	mu    sync.Mutex
	cron  *cron.Cron
	tasks map[string]scheduled
}

// New creates a new scheduler running in loc
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(loc)),
		tasks: make(map[string]scheduled),
	}
}

// AddJob adds a task with a cron schedule
// schedule format: "0 7 * * *" (at 7:00 AM daily)
func (s *Scheduler) AddJob(name, schedule string, task Task) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := run(context.Background(), name, task); err != nil {
			logrus.WithField("task", name).Errorf("Scheduled task failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}

	s.mu.Lock()
	if old, ok := s.tasks[name]; ok {
		s.cron.Remove(old.id)
	}
	s.tasks[name] = scheduled{id: entryID, task: task}
	s.mu.Unlock()

	logrus.Infof("Scheduled task %s (schedule: %s)", name, schedule)
	return nil
}

// AddEvery runs task at a fixed interval
func (s *Scheduler) AddEvery(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %v for task %s", interval, name)
	}
	return s.AddJob(name, "@every "+interval.String(), task)
}

// Start begins running scheduled tasks
func (s *Scheduler) Start() {
	logrus.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done once running tasks finish
func (s *Scheduler) Stop() context.Context {
	logrus.Info("Stopping scheduler")
	return s.cron.Stop()
}

// RunNow executes a scheduled task out of turn and waits for it
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	logrus.WithField("task", name).Info("Running task now")
	return run(ctx, name, t.task)
}

func run(ctx context.Context, name string, task Task) error {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	log := logrus.WithField("task", name)
	log.Debug("Starting task")
	start := time.Now()
	if err := task(ctx); err != nil {
		return err
	}
	log.Debugf("Task completed in %v", time.Since(start))
	return nil
}

// ListJobs returns info about scheduled tasks, sorted by name
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.tasks))
	for name, t := range s.tasks {
		for _, entry := range entries {
			if entry.ID == t.id {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

// JobInfo contains information about a scheduled task
type JobInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run"`
}
