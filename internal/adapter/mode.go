package adapter

import (
	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/nci"
)

// OperatingMode is the upper-layer's desired-mode bitmask (spec §4.4).
type OperatingMode uint32

const (
	ModeReaderWriter OperatingMode = 1 << iota
	ModeP2PInitiator
	ModeP2PTarget
	ModeCardEmulation
)

// toNCIOpMode translates an OperatingMode bitmask to the NCI op-mode mask
// by unioning each set bit's translation (spec §4.4).
func (m OperatingMode) toNCIOpMode() nci.OpMode {
	var out nci.OpMode
	if m&ModeReaderWriter != 0 {
		out |= nci.OpModeRW | nci.OpModePoll
	}
	if m&ModeP2PInitiator != 0 {
		out |= nci.OpModePeer | nci.OpModePoll
	}
	if m&ModeP2PTarget != 0 {
		out |= nci.OpModePeer | nci.OpModeListen
	}
	if m&ModeCardEmulation != 0 {
		out |= nci.OpModeCE | nci.OpModeListen
	}
	return out
}

// techABF is the requestable {A,B,F} subset of the full technology mask;
// set_allowed_techs/get_supported_techs operate over this subset only
// (spec §6) — V and the CE-lock listen variants are not user-selectable.
const techABF = nci.TechPollA | nci.TechPollB | nci.TechPollF

// SubmitModeRequest implements submit_mode_request (spec §6): union the
// requested op-mode bits, submit to NCI, re-kick DISCOVERY if non-empty
// and powered, and schedule a coalesced mode-check.
func (a *Adapter) SubmitModeRequest(mode OperatingMode) bool {
	var accepted bool
	a.run(func() {
		a.desiredMode = mode
		opMode := mode.toNCIOpMode()
		if err := a.core.SetOpMode(opMode); err != nil {
			a.logger.Error("adapter: set op-mode failed", zap.Error(err))
			return
		}
		if opMode != 0 && a.powered {
			_ = a.core.CommandDiscovery()
		}
		a.modeChangePending = true
		a.sched.ScheduleModeCheck(a.runModeCheck)
		accepted = true
	})
	return accepted
}

// CancelModeRequest implements cancel_mode_request (spec §6): revert to
// no desired mode.
func (a *Adapter) CancelModeRequest() {
	a.run(func() {
		a.desiredMode = 0
		_ = a.core.SetOpMode(0)
		a.modeChangePending = true
		a.sched.ScheduleModeCheck(a.runModeCheck)
	})
}

// runModeCheck is the coalesced, deferred mode-check task (spec §4.4).
// It is invoked on the scheduler's timer goroutine, not on the loop, and
// crosses onto the loop goroutine via run() before touching adapter state.
func (a *Adapter) runModeCheck() {
	a.run(func() {
		effective := OperatingMode(0)
		if a.core.CurrentState() > nci.StateIdle {
			effective = a.desiredMode
		}
		if a.modeChangePending && effective == a.desiredMode {
			a.modeChangePending = false
			a.currentMode = effective
			a.notifier.ModeNotify(a.currentMode, true)
			return
		}
		if !a.modeChangePending && a.currentMode != effective {
			a.currentMode = effective
			a.notifier.ModeNotify(a.currentMode, false)
		}
	})
}

// GetSupportedTechs implements get_supported_techs (spec §6): bitmask of
// {A,B,F} the controller supports.
func (a *Adapter) GetSupportedTechs() nci.TechMask {
	var techs nci.TechMask
	a.run(func() { techs = a.supportedTechs & techABF })
	return techs
}

// SetAllowedTechs implements set_allowed_techs (spec §4.4, §6):
// active_techs := (supported & ~requested-subset-bits) | (supported &
// requested); push active_techs & active_tech_mask to NCI.
func (a *Adapter) SetAllowedTechs(requested nci.TechMask) {
	a.run(func() {
		a.activeTechs = (a.supportedTechs &^ techABF) | (a.supportedTechs & requested)
		_ = a.core.SetTechMask(a.activeTechs & a.activeTechMask)
	})
}

// CurrentMode and DesiredMode expose the adapter's mode bookkeeping for
// diagnostics (management API status endpoint).
func (a *Adapter) CurrentMode() OperatingMode {
	var m OperatingMode
	a.run(func() { m = a.currentMode })
	return m
}

func (a *Adapter) DesiredMode() OperatingMode {
	var m OperatingMode
	a.run(func() { m = a.desiredMode })
	return m
}
