package jobs

import (
	"github.com/ibeckermayer/xharvest/internal/types"
)

// Run is the handle a handler uses to talk back to the server
type Run struct {
	ID      string
	Payload any

	server *Server
}

var _ types.Observer = (*Run)(nil)

// Stopped reports whether a stop was requested for this job
func (r *Run) Stopped() bool {
	r.server.mu.Lock()
	defer r.server.mu.Unlock()
	e, ok := r.server.jobs[r.ID]
	return ok && e.job.StopRequested
}

// StopFunc adapts Stopped for the engines
func (r *Run) StopFunc() types.StopFunc { return r.Stopped }

// Observe records the latest progress snapshot
func (r *Run) Observe(p types.Progress) {
	r.server.update(r.ID, func(j *Job) { j.Progress = p })
}

// SetStatus moves the job to another non-terminal status
func (r *Run) SetStatus(s Status) {
	if s.Terminal() {
		return
	}
	r.server.update(r.ID, func(j *Job) { j.Status = s })
}
