package types

// Progress is a snapshot emitted by an engine while it runs
type Progress struct {
	Phase      string `json:"phase,omitempty"`
	Current    int    `json:"current"`
	Total      int    `json:"total,omitempty"`
	Success    int    `json:"success,omitempty"`
	Count      int    `json:"count"`
	LastItem   string `json:"last_item,omitempty"`
	LastStatus string `json:"status,omitempty"`
}

// Observer consumes progress events
type Observer interface {
	Observe(Progress)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Progress)

func (f ObserverFunc) Observe(p Progress) { f(p) }

// Discard drops every event
var Discard Observer = ObserverFunc(func(Progress) {})

// StopFunc is polled at cancellation checkpoints
type StopFunc func() bool

// Stopped is nil safe
func (f StopFunc) Stopped() bool { return f != nil && f() }
