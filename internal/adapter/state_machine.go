// Package adapter implements the NCI adapter core: the state machine that
// reconciles NCI RF-discovery state with a framework-level object model,
// keeps a physical endpoint alive across brief RF losses, and marshals
// application data through the NCI data path with per-interface framing.
package adapter

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
)

// InternalState is the adapter's six-value state (spec §3, §4.3).
type InternalState int

const (
	StateIdle InternalState = iota
	StateHaveTarget
	StateHaveInitiator
	StateReactivatingTarget
	StateReactivatingCE
	StateReactivatedCE
)

func (s InternalState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHaveTarget:
		return "HAVE_TARGET"
	case StateHaveInitiator:
		return "HAVE_INITIATOR"
	case StateReactivatingTarget:
		return "REACTIVATING_TARGET"
	case StateReactivatingCE:
		return "REACTIVATING_CE"
	case StateReactivatedCE:
		return "REACTIVATED_CE"
	default:
		return "UNKNOWN"
	}
}

// Notifier is the adapter's upward event-out boundary (spec §6): mode
// changes and parameter changes. Per-endpoint notifications (gone,
// reactivated) are delivered directly on the framework tag/peer/host
// objects instead, per the framework's own contract.
type Notifier interface {
	ModeNotify(mode OperatingMode, confirmed bool)
	ParamChangeNotify(id nci.ParamID)
}

// NopNotifier discards every notification; useful as a default before a
// real sink (internal/telemetry, internal/websocket) is wired in.
type NopNotifier struct{}

func (NopNotifier) ModeNotify(OperatingMode, bool)     {}
func (NopNotifier) ParamChangeNotify(nci.ParamID)      {}

// Adapter is the singleton per-NCI-session state machine (spec §3).
// Concurrency model: all state is owned by a single goroutine running
// loop(); every external entry point (NCI callbacks, upward API calls)
// enqueues a closure onto cmd and blocks for it to run, which gives the
// spec's "single-threaded cooperative" semantics — no locks protect the
// fields below, only the serialization the loop provides. Grounded on the
// teacher's channel-based Node/Executor model (internal/node/node.go).
type Adapter struct {
	core     nci.Core
	fw       framework.Framework
	logger   *zap.Logger
	notifier Notifier
	sched    *scheduler

	cmd     chan func()
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	startMu sync.Mutex

	// --- fields below are loop-goroutine-owned; do not touch off-loop ---

	state      InternalState
	activeIntf *IntfInfo

	target       *Target
	initiatorObj framework.Initiator

	tag  weakRef[framework.Tag]
	peer weakRef[framework.Peer]
	host weakRef[framework.Host]

	desiredMode       OperatingMode
	currentMode       OperatingMode
	modeChangePending bool

	supportedTechs nci.TechMask
	activeTechs    nci.TechMask
	activeTechMask nci.TechMask

	powered bool
	enabled bool
}

// NewAdapter constructs an Adapter wired to core and fw. notifier may be
// nil, in which case a NopNotifier is used.
func NewAdapter(core nci.Core, fw framework.Framework, logger *zap.Logger, notifier Notifier) *Adapter {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		core:           core,
		fw:             fw,
		logger:         logger,
		notifier:       notifier,
		sched:          newScheduler(logger),
		cmd:            make(chan func()),
		stop:           make(chan struct{}),
		state:          StateIdle,
		supportedTechs: core.SupportedTechs(),
		activeTechMask: nci.TechAll,
		powered:        true,
		enabled:        true,
	}
	core.OnActivated(a.dispatchActivated)
	core.OnStateChanged(a.dispatchStateChanged)
	core.OnParamChanged(a.dispatchParamChanged)

	return a
}

// Start launches the adapter's event loop goroutine and its scheduler.
func (a *Adapter) Start() {
	a.startMu.Lock()
	defer a.startMu.Unlock()
	if a.started {
		return
	}
	a.started = true
	a.sched.Start()
	a.wg.Add(1)
	go a.loop()
}

// Stop drains the loop and tears down outstanding deferred work and any
// live target, per spec §9's shutdown-ordering note: sever targets before
// releasing the NCI core.
func (a *Adapter) Stop() {
	a.startMu.Lock()
	if !a.started {
		a.startMu.Unlock()
		return
	}
	a.started = false
	a.startMu.Unlock()

	a.run(func() {
		if a.target != nil {
			a.target.CancelTransmit()
			a.target.Detach()
			a.target = nil
		}
	})
	close(a.stop)
	a.wg.Wait()
	a.sched.Stop()
}

func (a *Adapter) loop() {
	defer a.wg.Done()
	for {
		select {
		case fn := <-a.cmd:
			fn()
		case <-a.stop:
			return
		}
	}
}

// run enqueues fn onto the loop goroutine and blocks until it completes.
// Every public Adapter method (and every NCI-callback dispatcher) funnels
// through this to get the spec's single-threaded semantics regardless of
// which goroutine the caller runs on.
func (a *Adapter) run(fn func()) {
	done := make(chan struct{})
	a.cmd <- func() {
		fn()
		close(done)
	}
	<-done
}

// --- NCI callback dispatchers: cross from whatever goroutine NCI uses
// onto the loop goroutine, then call the real handler. ---

func (a *Adapter) dispatchActivated(ntf nci.ActivationNotification) {
	a.run(func() { a.handleActivation(ntf) })
}

func (a *Adapter) dispatchStateChanged(current, next nci.RFState) {
	a.run(func() { a.handleStateChanged(current, next) })
}

func (a *Adapter) dispatchParamChanged(id nci.ParamID) {
	a.run(func() { a.handleParamChanged(id) })
}

// State returns the adapter's current internal_state.
func (a *Adapter) State() InternalState {
	var s InternalState
	a.run(func() { s = a.state })
	return s
}

// ActiveIntf returns a copy of the currently active IntfInfo, if any.
func (a *Adapter) ActiveIntf() (IntfInfo, bool) {
	var info IntfInfo
	var ok bool
	a.run(func() {
		if a.activeIntf != nil {
			info, ok = *a.activeIntf, true
		}
	})
	return info, ok
}

// Status returns a snapshot of the adapter's externally visible state
// (spec §6: GET /v1/status — internal_state, active_intf summary,
// current_mode).
func (a *Adapter) Status() map[string]interface{} {
	status := make(map[string]interface{})
	a.run(func() {
		status["internal_state"] = a.state.String()
		status["current_mode"] = a.currentMode
		status["active_techs"] = a.activeTechs
		if a.activeIntf != nil {
			status["active_intf"] = map[string]interface{}{
				"rf_intf":  a.activeIntf.RFIntf,
				"protocol": a.activeIntf.Protocol,
				"mode":     a.activeIntf.Mode,
			}
		}
	})
	return status
}

// --- activation / deactivation handling (spec §4.3) ---

// handleActivation is input A: a fresh activation notification. Must run
// on the loop goroutine.
func (a *Adapter) handleActivation(ntf nci.ActivationNotification) {
	// Any activation cancels a running CE-reactivation timer.
	a.sched.CancelCEReactivationTimer()

	switch a.state {
	case StateIdle:
		a.installFromDetection(ntf)

	case StateHaveTarget:
		// "— (goes through IDLE)" per the transition table: a fresh
		// activation while HAVE_TARGET first tears down through IDLE,
		// then re-runs detection as if from IDLE.
		a.dropTarget()
		a.installFromDetection(ntf)

	case StateHaveInitiator:
		if a.activeIntf != nil && a.activeIntf.Matches(ntf) {
			if _, hasHost := a.host.Get(); hasHost {
				a.state = StateReactivatedCE
				if a.initiatorObj != nil {
					a.initiatorObj.Reactivated()
				}
			} else {
				a.logger.Debug("adapter: keeping initiator alive (no host present)")
			}
		} else {
			a.dropInitiator()
			a.installFromDetection(ntf)
		}

	case StateReactivatingTarget:
		if a.activeIntf != nil && a.activeIntf.Matches(ntf) {
			a.state = StateHaveTarget
			if tag, ok := a.tag.Get(); ok {
				tag.Reactivated()
			} else if peer, ok := a.peer.Get(); ok {
				peer.Reactivated()
			}
		} else {
			a.dropTarget()
			a.installFromDetection(ntf)
		}

	case StateReactivatingCE:
		if a.activeIntf != nil && a.activeIntf.Matches(ntf) {
			a.state = StateReactivatedCE
			if a.initiatorObj != nil {
				a.initiatorObj.Reactivated()
			}
		} else {
			a.dropInitiator()
			a.installFromDetection(ntf)
		}

	case StateReactivatedCE:
		if a.activeIntf != nil && a.activeIntf.Matches(ntf) {
			a.state = StateReactivatedCE
			if a.initiatorObj != nil {
				a.initiatorObj.Reactivated()
			}
		} else {
			a.dropInitiator()
			a.installFromDetection(ntf)
		}
	}
}

// installFromDetection runs the object detector on ntf and, if it
// matches, installs the resulting Target or Initiator and moves to
// HAVE_TARGET / HAVE_INITIATOR. If nothing matches, drops everything and
// kicks NCI back to IDLE (spec §4.2, §7 "Factory failures").
func (a *Adapter) installFromDetection(ntf nci.ActivationNotification) {
	result := Detect(a.fw, ntf)
	info := NewIntfInfo(ntf)

	if !result.Matched {
		a.state = StateIdle
		a.activeIntf = nil
		_ = a.core.CommandIdle()
		return
	}

	a.activeIntf = &info

	if ntf.Mode.IsPoll() {
		a.target = NewTarget(a, a.core, ntf.Protocol, ntf.RFIntf, a.logger)
		if result.Tag != nil {
			a.tag.Set(result.Tag.ID(), result.Tag)
		} else if result.Peer != nil {
			a.peer.Set(result.Peer.ID(), result.Peer)
		}
		a.state = StateHaveTarget
		if ntf.Protocol != nci.ProtoNFCDEP {
			a.sched.StartPresenceCheckTimer(a.onPresenceCheckTick)
		}
		return
	}

	a.initiatorObj = result.Initiator
	if result.Peer != nil {
		a.peer.Set(result.Peer.ID(), result.Peer)
	} else if result.Host != nil {
		a.host.Set(result.Host.ID(), result.Host)
	}
	a.state = StateHaveInitiator
}

// dropTarget tears down the current Target and its IntfInfo (spec §5:
// dropping a target cancels its presence check and frees active_intf).
func (a *Adapter) dropTarget() {
	a.sched.StopPresenceCheckTimer()
	if a.target != nil {
		a.target.CancelTransmit()
		a.target.Detach()
		a.target = nil
	}
	a.tag.Clear()
	a.peer.Clear()
	a.activeIntf = nil
	a.state = StateIdle
}

// dropInitiator tears down the current Initiator, cancels the CE
// reactivation timer, and restores active_tech_mask to TECH_ALL (spec §5,
// §4.3 CE tech locking).
func (a *Adapter) dropInitiator() {
	a.sched.CancelCEReactivationTimer()
	a.initiatorObj = nil
	a.host.Clear()
	a.peer.Clear()
	a.activeIntf = nil
	if a.activeTechMask != nci.TechAll {
		a.activeTechMask = nci.TechAll
		_ = a.core.SetTechMask(a.activeTechs & a.activeTechMask)
	}
	a.state = StateIdle
}

// --- deactivation (input D) and state-change handling (spec §4.3) ---

// handleStateChanged is input D (when derived) and the "state-check after
// every NCI state change" rule. Must run on the loop goroutine.
func (a *Adapter) handleStateChanged(current, next nci.RFState) {
	wasActive := a.state != StateIdle
	deactivating := wasActive && (next == nci.StateIdle || next == nci.StateDiscovery)

	if deactivating {
		a.handleDeactivation()
	}

	// State-check after every NCI state change: if enabled+powered but NCI
	// settled in IDLE, re-kick to DISCOVERY.
	if a.enabled && a.powered && next == nci.StateIdle {
		_ = a.core.CommandDiscovery()
	}
}

func (a *Adapter) handleDeactivation() {
	switch a.state {
	case StateHaveTarget:
		a.dropTarget()

	case StateHaveInitiator:
		if _, hasHost := a.host.Get(); hasHost {
			a.armCEReactivation()
		} else {
			a.dropInitiator()
		}

	case StateReactivatingCE:
		// Stay; NCI reset locks tech. No-op per transition table.

	case StateReactivatedCE:
		a.armCEReactivation()

	case StateReactivatingTarget, StateIdle:
		// no D-transition defined; nothing to do.
	}
}

// armCEReactivation implements the CE tech-locking rule (spec §4.3): lock
// the active tech mask to the initiator's technology, arm the 1,500ms
// timer, and move to REACTIVATING_CE.
func (a *Adapter) armCEReactivation() {
	ceTech := a.ceTechForActiveIntf()
	if ceTech != 0 {
		a.activeTechMask = ceTech
		_ = a.core.SetTechMask(a.activeTechs & a.activeTechMask)
	}
	a.state = StateReactivatingCE
	a.sched.ArmCEReactivationTimer(a.onCEReactivationTimeout)
}

// ceTechForActiveIntf computes ce_tech from the active intf's mode: A ->
// TECH_A_LISTEN, B -> TECH_B_LISTEN, else none.
func (a *Adapter) ceTechForActiveIntf() nci.TechMask {
	if a.activeIntf == nil {
		return 0
	}
	switch a.activeIntf.Mode {
	case nci.ModePassiveListenA, nci.ModeActiveListenA:
		return nci.TechAListen
	case nci.ModePassiveListenB:
		return nci.TechBListen
	default:
		return 0
	}
}

// onCEReactivationTimeout is input T: the 1,500ms CE-reactivation timer
// fired with no matching activation. Runs on the loop goroutine (the
// scheduler's timer callback enqueues via run).
func (a *Adapter) onCEReactivationTimeout() {
	a.run(func() {
		if a.state != StateReactivatingCE {
			return
		}
		a.dropInitiator()
	})
}

// handleParamChanged re-broadcasts an NCI-side parameter change upward
// (spec §4.7, §6).
func (a *Adapter) handleParamChanged(id nci.ParamID) {
	if id == nci.ParamLANFCID1 {
		a.notifier.ParamChangeNotify(id)
	}
}

// --- upward API (spec §6) ---

// Reactivate implements the upper-layer reactivation request (spec §4.3
// preconditions, S6). Allowed only in HAVE_TARGET with active_intf set and
// NCI current/next both POLL_ACTIVE or both LISTEN_ACTIVE.
func (a *Adapter) Reactivate() bool {
	var ok bool
	a.run(func() {
		if a.state != StateHaveTarget || a.activeIntf == nil {
			a.logger.Warn("adapter: reactivate denied: wrong state")
			return
		}
		current, next := a.core.CurrentState(), a.core.NextState()
		bothPoll := current == nci.StatePollActive && next == nci.StatePollActive
		bothListen := current == nci.StateListenActive && next == nci.StateListenActive
		if !bothPoll && !bothListen {
			a.logger.Warn("adapter: reactivate denied: NCI state mismatch",
				zap.String("current", current.String()), zap.String("next", next.String()))
			return
		}
		a.sched.StopPresenceCheckTimer()
		a.state = StateReactivatingTarget
		_ = a.core.CommandDiscovery()
		ok = true
	})
	return ok
}

// DeactivateTarget drops the current Target, if any, and re-kicks
// discovery when powered (spec §6).
func (a *Adapter) DeactivateTarget() {
	a.run(func() {
		if a.target == nil {
			return
		}
		a.dropTarget()
		if a.powered {
			_ = a.core.CommandDiscovery()
		}
	})
}

// DeactivateInitiator drops the current Initiator, if any, and re-kicks
// discovery when powered (spec §6).
func (a *Adapter) DeactivateInitiator() {
	a.run(func() {
		if a.initiatorObj == nil {
			return
		}
		a.dropInitiator()
		if a.powered {
			_ = a.core.CommandDiscovery()
		}
	})
}

// liveTarget returns the live Target, if the adapter currently has one.
// The returned pointer must only be used for issuing transmits; it
// becomes invalid after the next state transition that drops it.
func (a *Adapter) liveTarget() *Target {
	var t *Target
	a.run(func() { t = a.target })
	return t
}

// Transmit issues a data-path send on the adapter's current Target, if
// any (spec §4.5, §6 "on the Target boundary").
func (a *Adapter) Transmit(payload []byte, seq framework.Sequence, onDone func(framework.TransmitResult, []byte)) (uint64, error) {
	t := a.liveTarget()
	if t == nil {
		return 0, ErrNoTarget
	}
	return t.Transmit(payload, seq, onDone)
}
