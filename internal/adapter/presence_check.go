package adapter

// onPresenceCheckTick is the scheduler's periodic callback (spec §4.6),
// invoked via cron on its own goroutine — it crosses onto the loop
// goroutine via run() before touching any adapter state.
func (a *Adapter) onPresenceCheckTick() {
	a.run(a.presenceCheckTick)
}

// presenceCheckTick must run on the loop goroutine.
func (a *Adapter) presenceCheckTick() {
	if a.target == nil {
		return
	}
	if a.target.PresenceCheckInFlight() {
		return
	}
	if seq := a.target.Sequence(); seq != nil && !seq.AllowsPresenceCheck() {
		return
	}

	started := a.target.StartPresenceCheck(func(ok bool) {
		a.run(func() { a.onPresenceCheckDone(ok) })
	})
	if !started {
		// Probe could not be started at all: stop the timer and kick NCI
		// back to discovery (spec §4.6, "if the probe could not be
		// started").
		a.sched.StopPresenceCheckTimer()
		_ = a.core.CommandDiscovery()
	}
}

// onPresenceCheckDone is the presence-check completion callback (spec
// §4.6). Must run on the loop goroutine.
func (a *Adapter) onPresenceCheckDone(ok bool) {
	if a.target == nil {
		return
	}
	if !ok {
		a.dropTarget()
		_ = a.core.CommandDiscovery()
	}
}
