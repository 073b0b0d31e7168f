package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultQueueSize = 64

// Handler executes one job. A returned error fails the job.
type Handler func(ctx context.Context, run *Run) (any, error)

type registration struct {
	category Category
	handler  Handler
	statuses Statuses
}

type entry struct {
	job     Job
	payload any
}

// Server owns the job table and one queue per category
type Server struct {
	mu sync.Mutex

	jobs     map[string]*entry
	handlers map[Kind]registration
	queues   map[Category]chan string
	hooks    []func(Job)

	queueSize int
	retention time.Duration
	now       func() time.Time
}

type Option func(*Server)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server whose queues hold queueSize jobs each and whose
// finished jobs are kept for retention
func NewServer(queueSize int, retention time.Duration, opts ...Option) *Server {
	if queueSize <= 0 {
		logrus.Infof("Invalid queue size (%d), defaulting to %d.", queueSize, defaultQueueSize)
		queueSize = defaultQueueSize
	}
	s := &Server{
		jobs:      make(map[string]*entry),
		handlers:  make(map[Kind]registration),
		queues:    make(map[Category]chan string),
		queueSize: queueSize,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register binds a kind to its category and handler. Call before Run.
func (s *Server) Register(kind Kind, category Category, handler Handler, statuses Statuses) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if statuses.Running == "" {
		statuses.Running = DefaultStatuses.Running
	}
	if !statuses.Done.Terminal() {
		statuses.Done = DefaultStatuses.Done
	}
	s.handlers[kind] = registration{category: category, handler: handler, statuses: statuses}
	if _, ok := s.queues[category]; !ok {
		s.queues[category] = make(chan string, s.queueSize)
	}
	logrus.Infof("Registered job kind %s on worker %s", kind, category)
}

// OnFinish registers fn to receive every job once it reaches a terminal status
func (s *Server) OnFinish(fn func(Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Run starts one worker per category and blocks until ctx is done
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	queues := make(map[Category]chan string, len(s.queues))
	for c, q := range s.queues {
		queues[c] = q
	}
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for category, queue := range queues {
		g.Go(func() error {
			s.worker(ctx, category, queue)
			return nil
		})
	}
	return g.Wait()
}

// Submit queues a job and returns its id without waiting for it to run
func (s *Server) Submit(kind Kind, payload any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.handlers[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidJobType, kind)
	}

	now := s.now()
	id := uuid.New().String()
	e := &entry{
		job: Job{
			ID:        id,
			Kind:      kind,
			Category:  reg.category,
			Status:    StatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		payload: payload,
	}

	select {
	case s.queues[reg.category] <- id:
	default:
		return "", fmt.Errorf("%w: %s", ErrQueueFull, reg.category)
	}
	s.jobs[id] = e

	logrus.WithFields(logrus.Fields{"job": id, "kind": kind}).Info("Job queued")
	return id, nil
}

// Get returns a snapshot of the job
func (s *Server) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// RequestStop flags a queued or running job. Terminal jobs are left untouched.
func (s *Server) RequestStop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if e.job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, id, e.job.Status)
	}
	e.job.StopRequested = true
	e.job.UpdatedAt = s.now()
	logrus.WithField("job", id).Info("Stop requested")
	return nil
}

// Cleanup drops terminal jobs older than the retention window and returns how many went
func (s *Server) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for id, e := range s.jobs {
		if e.job.Status.Terminal() && e.job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		logrus.Infof("Cleaned up %d finished jobs", removed)
	}
	return removed
}

func (s *Server) update(id string, fn func(j *Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return
	}
	fn(&e.job)
	e.job.UpdatedAt = s.now()
}

func (s *Server) worker(ctx context.Context, category Category, queue <-chan string) {
	logrus.Infof("Worker %s started", category)
	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %s stopped", category)
			return
		case id := <-queue:
			s.execute(ctx, id)
		}
	}
}

func (s *Server) execute(ctx context.Context, id string) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	reg := s.handlers[e.job.Kind]
	if e.job.StopRequested {
		s.mu.Unlock()
		s.finish(id, nil, ErrStoppedBeforeStart, reg.statuses)
		return
	}
	e.job.Status = reg.statuses.Running
	e.job.UpdatedAt = s.now()
	run := &Run{ID: id, Payload: e.payload, server: s}
	s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"job": id, "kind": e.job.Kind})
	log.Info("Job started")

	result, err := safeCall(ctx, reg.handler, run)
	if err != nil {
		log.Errorf("Job failed: %v", err)
	} else {
		log.Info("Job finished")
	}
	s.finish(id, result, err, reg.statuses)
}

func safeCall(ctx context.Context, h Handler, run *Run) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Job %s panicked: %v\n%s", run.ID, r, debug.Stack())
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, run)
}

func (s *Server) finish(id string, result any, err error, statuses Statuses) {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	if err != nil {
		e.job.Status = StatusFailed
		e.job.Error = err.Error()
	} else {
		e.job.Status = statuses.Done
	}
	e.job.Result = result
	e.job.UpdatedAt = s.now()
	snapshot := e.job
	hooks := slices.Clone(s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(snapshot)
	}
}
