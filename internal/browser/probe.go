package browser

import (
	"context"
	"time"
)

// Probe is one structural marker that may identify a page state.
// Probe lists are tried in order and the first present one wins.
type Probe struct {
	Name     string
	Selector string
}

// FirstMatch returns the first probe present on the page right now
func FirstMatch(ctx context.Context, p Page, probes []Probe) (Probe, bool) {
	for _, probe := range probes {
		ok, err := p.Exists(ctx, probe.Selector)
		if err == nil && ok {
			return probe, true
		}
	}
	return Probe{}, false
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
