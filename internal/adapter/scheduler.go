package adapter

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CEReactivationTimeout and PresenceCheckPeriod are the spec's literal
// timing constants (§6).
const (
	PresenceCheckPeriod  = 250 * time.Millisecond
	CEReactivationTimeout = 1500 * time.Millisecond
)

// scheduler is the adapter's deferred-work mechanism (spec §5): three
// handles (mode_check, presence_check_timer, ce_reactivation_timer), all
// modeled as cancellable, idempotent-to-cancel handles rather than raw
// goroutines the adapter itself would have to manage.
//
// The periodic presence-check tick is driven by robfig/cron with a
// fixed-delay schedule (grounded on the teacher's internal/engine/scheduler.go cron
// wrapper); the two one-shot timers are plain time.AfterFunc, grounded on
// the teacher's saas.TunnelAgent.reconnectTimer pattern — a cancellable
// one-shot gains nothing from a library wrapper over the stdlib primitive.
type scheduler struct {
	mu sync.Mutex

	cron              *cron.Cron
	presenceEntryID   cron.EntryID
	presenceRunning   bool

	modeCheckTimer *time.Timer
	ceTimer        *time.Timer

	logger *zap.Logger
}

func newScheduler(logger *zap.Logger) *scheduler {
	return &scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins running the cron loop (idempotent; the presence-check
// entry is added/removed independently via StartPresenceCheck).
func (s *scheduler) Start() {
	s.cron.Start()
}

// Stop tears down all deferred work: the cron loop and any outstanding
// one-shot timers.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.modeCheckTimer != nil {
		s.modeCheckTimer.Stop()
		s.modeCheckTimer = nil
	}
	if s.ceTimer != nil {
		s.ceTimer.Stop()
		s.ceTimer = nil
	}
}

// presenceCheckSchedule is a fixed-delay cron.Schedule. cron's own "@every"
// rounds delays under one second up to a full second, so the 250ms tick
// needs a schedule of its own.
type presenceCheckSchedule struct{ period time.Duration }

func (p presenceCheckSchedule) Next(t time.Time) time.Time { return t.Add(p.period) }

// StartPresenceCheckTimer arms the 250ms periodic tick (spec §4.6, §6). A
// no-op if already running — armed iff target exists and protocol is not
// NFC-DEP (invariant 3), and the adapter only calls this once per such
// activation.
func (s *scheduler) StartPresenceCheckTimer(tick func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presenceRunning {
		return
	}
	id := s.cron.Schedule(presenceCheckSchedule{period: PresenceCheckPeriod}, cron.FuncJob(tick))
	s.presenceEntryID = id
	s.presenceRunning = true
}

// StopPresenceCheckTimer disarms the periodic tick. Idempotent.
func (s *scheduler) StopPresenceCheckTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.presenceRunning {
		return
	}
	s.cron.Remove(s.presenceEntryID)
	s.presenceRunning = false
}

// ScheduleModeCheck coalesces a mode-check into a single deferred
// one-shot task (spec §4.4): calling it again before the pending one
// fires is a no-op, so repeated mode/tech changes in the same loop tick
// only trigger one mode-check.
func (s *scheduler) ScheduleModeCheck(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modeCheckTimer != nil {
		return
	}
	s.modeCheckTimer = time.AfterFunc(0, func() {
		s.mu.Lock()
		s.modeCheckTimer = nil
		s.mu.Unlock()
		fn()
	})
}

// CancelModeCheck cancels a pending mode-check. Idempotent.
func (s *scheduler) CancelModeCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modeCheckTimer != nil {
		s.modeCheckTimer.Stop()
		s.modeCheckTimer = nil
	}
}

// ArmCEReactivationTimer starts the 1,500ms one-shot CE-reactivation
// timeout (spec §4.3, §6).
func (s *scheduler) ArmCEReactivationTimer(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ceTimer != nil {
		s.ceTimer.Stop()
	}
	s.ceTimer = time.AfterFunc(CEReactivationTimeout, func() {
		s.mu.Lock()
		s.ceTimer = nil
		s.mu.Unlock()
		fn()
	})
}

// CancelCEReactivationTimer cancels the CE-reactivation timeout.
// Idempotent (spec §5, "any deferred handle set to zero is a no-op to
// cancel").
func (s *scheduler) CancelCEReactivationTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ceTimer != nil {
		s.ceTimer.Stop()
		s.ceTimer = nil
	}
}

// CEReactivationArmed reports whether the CE-reactivation timer is
// currently running (invariant 4: armed ⇒ internal_state = REACTIVATING_CE).
func (s *scheduler) CEReactivationArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ceTimer != nil
}

// PresenceCheckTimerArmed reports whether the periodic tick is running
// (invariant 3).
func (s *scheduler) PresenceCheckTimerArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presenceRunning
}
