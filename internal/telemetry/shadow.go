package telemetry

import "sync"

// ShadowTracker keeps the last-published Shadow snapshot and decides
// whether a new one differs enough to be worth sending, adapted from
// the teacher's ShadowManager (the HTTP GET/PUT shadow-sync round trip
// has no equivalent here: the adapter's shadow is pushed one-way over
// the Bridge's own tunnel, not pulled from a separate shadow service).
type ShadowTracker struct {
	mu   sync.Mutex
	last Shadow
	set  bool
}

// NewShadowTracker creates an empty tracker.
func NewShadowTracker() *ShadowTracker {
	return &ShadowTracker{}
}

// Diff reports whether next differs from the last published snapshot
// (ignoring UpdatedAt) and, if so, records it as the new baseline.
func (t *ShadowTracker) Diff(next Shadow) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.set && t.last.InternalState == next.InternalState &&
		t.last.ActiveIntf == next.ActiveIntf &&
		t.last.CurrentMode == next.CurrentMode &&
		t.last.ActiveTechs == next.ActiveTechs {
		return false
	}

	t.last = next
	t.set = true
	return true
}

// Current returns the last recorded snapshot.
func (t *ShadowTracker) Current() (Shadow, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.set
}
