package adapter

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
)

// ISODepTransmitTimeout and the other per-rf_intf transmit timeouts are
// set at Target construction (spec §4.5, §6 timing constants).
const ISODepTransmitTimeout = 2500 * time.Millisecond

// ErrTransmitInFlight / ErrSendInFlight are structural (programmer) errors
// per spec §7: double-send on a target is a caller bug, not a protocol
// error — callers must check before issuing a second transmit.
var (
	ErrTransmitInFlight = errors.New("adapter: transmit already in flight")
	ErrSendInFlight     = errors.New("adapter: send already in flight")
	ErrNoTarget         = errors.New("adapter: no target active")
)

// transmitFinishFn dispatches a raw inbound payload to (result, delivered
// payload) per the Target's rf_intf framing rule (spec §4.5).
type transmitFinishFn func(logger *zap.Logger, payload []byte) (framework.TransmitResult, []byte)

// presenceCheckFn issues the protocol-specific liveness probe over the
// transmit path and reports whether issuing it succeeded (spec §4.6).
type presenceCheckFn func(t *Target, onDone func(framework.TransmitResult, []byte)) (handle uint64, ok bool)

// Target is the poll-side data-path object: a reader/writer or P2P
// initiator-side logical endpoint (spec §3, §4.5).
type Target struct {
	mu sync.Mutex

	owner  *Adapter // weak back-pointer; nulled on Detach
	core   nci.Core
	connID int

	rfIntf nci.RFIntf

	sendInProgress     uint64
	transmitInProgress bool
	pendingReply       []byte

	presenceCheckFn  presenceCheckFn
	transmitFinishFn transmitFinishFn
	transmitTimeout  time.Duration
	transmitTimer    *time.Timer
	transmitGen      uint64

	onDone func(framework.TransmitResult, []byte)
	seq    framework.Sequence

	presenceCheckID    uint64
	presenceCheckArmed bool

	logger *zap.Logger
}

// NewTarget builds a Target for a freshly activated poll-side endpoint,
// selecting its presence-check and transmit-finish strategies from
// (protocol, rf_intf) per spec §4.5/§4.6/§9 (strategy record computed at
// construction, not a type hierarchy).
func NewTarget(owner *Adapter, core nci.Core, protocol nci.Protocol, rfIntf nci.RFIntf, logger *zap.Logger) *Target {
	t := &Target{
		owner:  owner,
		core:   core,
		connID: nci.StaticRFConnID,
		rfIntf: rfIntf,
		logger: logger,
	}
	t.transmitFinishFn = transmitFinishFor(rfIntf)
	t.transmitTimeout = transmitTimeoutFor(rfIntf)
	t.presenceCheckFn = presenceCheckFnFor(protocol)
	core.SetDataHandler(t.connID, t.onDataPacket)
	return t
}

func transmitTimeoutFor(rfIntf nci.RFIntf) time.Duration {
	switch rfIntf {
	case nci.RFIntfISODEP:
		return ISODepTransmitTimeout
	case nci.RFIntfNFCDEP:
		return 0 // rely on NCI-level interface-error notifications
	default:
		return 0 // Frame: framework default, caller-supplied
	}
}

func transmitFinishFor(rfIntf nci.RFIntf) transmitFinishFn {
	switch rfIntf {
	case nci.RFIntfFrame:
		return finishFrame
	case nci.RFIntfISODEP:
		return finishVerbatim
	case nci.RFIntfNFCDEP:
		return finishVerbatim
	default:
		return finishVerbatim
	}
}

// finishFrame implements spec §4.5's Frame finish rule: the last payload
// byte is a status code.
func finishFrame(logger *zap.Logger, payload []byte) (framework.TransmitResult, []byte) {
	if len(payload) == 0 {
		return framework.TransmitError, nil
	}
	status := nci.FrameStatus(payload[len(payload)-1])
	body := payload[:len(payload)-1]
	if status == nci.StatusRFFrameCorrupted {
		return framework.TransmitError, nil
	}
	if !status.IsSuccess() && logger != nil {
		// Permissive by design (spec §9 open question): unknown
		// non-corrupted status codes are still delivered as success.
		logger.Debug("frame-rf: unrecognized non-corrupted status, delivering anyway",
			zap.Int("status", int(status)))
	}
	return framework.TransmitOK, body
}

// finishVerbatim implements the ISO-DEP and NFC-DEP finish rule: deliver
// the entire payload as success.
func finishVerbatim(logger *zap.Logger, payload []byte) (framework.TransmitResult, []byte) {
	return framework.TransmitOK, payload
}

// presenceCheckFnFor returns the protocol-specific probe strategy, or nil
// if the protocol has no presence-check concept (e.g. NFC-DEP, which the
// adapter never arms a presence-check timer for in the first place).
func presenceCheckFnFor(protocol nci.Protocol) presenceCheckFn {
	switch protocol {
	case nci.ProtoT2T:
		return func(t *Target, onDone func(framework.TransmitResult, []byte)) (uint64, bool) {
			handle, err := t.Transmit([]byte{0x30, 0x00}, nil, onDone)
			return handle, err == nil
		}
	case nci.ProtoISODEP:
		return func(t *Target, onDone func(framework.TransmitResult, []byte)) (uint64, bool) {
			handle, err := t.Transmit([]byte{}, nil, onDone)
			return handle, err == nil
		}
	default:
		return nil
	}
}

// Transmit issues a data-path send for an application payload (spec
// §4.5). Asserts no send and no transmit already in flight.
func (t *Target) Transmit(payload []byte, seq framework.Sequence, onDone func(framework.TransmitResult, []byte)) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transmitLocked(payload, seq, onDone)
}

func (t *Target) transmitLocked(payload []byte, seq framework.Sequence, onDone func(framework.TransmitResult, []byte)) (uint64, error) {
	if t.transmitInProgress {
		return 0, ErrTransmitInFlight
	}
	if t.sendInProgress != 0 {
		return 0, ErrSendInFlight
	}
	t.transmitInProgress = true
	t.seq = seq
	t.onDone = onDone
	t.transmitGen++
	gen := t.transmitGen
	handle := t.core.SendData(t.connID, payload, t.onSendComplete)
	t.sendInProgress = handle
	if t.transmitTimeout > 0 {
		t.transmitTimer = time.AfterFunc(t.transmitTimeout, func() { t.onTransmitTimeout(gen) })
	}
	return handle, nil
}

// stopTransmitTimerLocked cancels any armed timeout timer. Must be called
// with t.mu held.
func (t *Target) stopTransmitTimerLocked() {
	if t.transmitTimer != nil {
		t.transmitTimer.Stop()
		t.transmitTimer = nil
	}
}

// onTransmitTimeout fires when neither a send-completion nor an inbound
// reply arrived within the rf_intf's transmit bound (spec §4.5's ISO-DEP
// 2,500ms limit). gen guards against a timer that raced a finalize/cancel
// for the same Target.
func (t *Target) onTransmitTimeout(gen uint64) {
	t.mu.Lock()
	if gen != t.transmitGen || !t.transmitInProgress {
		t.mu.Unlock()
		return
	}
	if t.sendInProgress != 0 {
		t.core.CancelSend(t.sendInProgress)
		t.sendInProgress = 0
	}
	t.transmitInProgress = false
	t.pendingReply = nil
	t.transmitTimer = nil
	onDone := t.onDone
	t.onDone = nil
	t.mu.Unlock()
	if onDone != nil {
		onDone(framework.TransmitError, nil)
	}
}

// onSendComplete is the NCI send-completion callback. Per spec §4.5: clear
// send_in_progress; if a pending_reply has already been buffered,
// finalize now.
func (t *Target) onSendComplete(status nci.SendStatus) {
	t.mu.Lock()
	t.sendInProgress = 0
	if status != nci.SendOK {
		t.transmitInProgress = false
		t.pendingReply = nil
		t.stopTransmitTimerLocked()
		onDone := t.onDone
		t.onDone = nil
		t.mu.Unlock()
		if onDone != nil {
			onDone(framework.TransmitError, nil)
		}
		return
	}
	if t.pendingReply != nil {
		reply := t.pendingReply
		t.pendingReply = nil
		t.mu.Unlock()
		t.finalize(reply)
		return
	}
	t.mu.Unlock()
}

// onDataPacket is the NCI inbound-data callback, keyed by connection id
// (spec §4.5).
func (t *Target) onDataPacket(payload []byte) {
	t.mu.Lock()
	if !t.transmitInProgress || t.pendingReply != nil {
		t.mu.Unlock()
		return
	}
	if t.sendInProgress != 0 {
		// Reply arrived before send-complete: a legitimate HAL race, not
		// an error (spec §4.5, §7 "Transient HAL races").
		buf := make([]byte, len(payload))
		copy(buf, payload)
		t.pendingReply = buf
		t.mu.Unlock()
		if t.logger != nil {
			t.logger.Debug("target: buffered inbound reply pending send-complete")
		}
		return
	}
	t.mu.Unlock()
	t.finalize(payload)
}

// finalize dispatches the transmit-finish strategy and delivers the
// result to the caller, clearing transmit_in_progress.
func (t *Target) finalize(payload []byte) {
	t.mu.Lock()
	fn := t.transmitFinishFn
	onDone := t.onDone
	t.transmitInProgress = false
	t.onDone = nil
	t.stopTransmitTimerLocked()
	t.mu.Unlock()

	result, body := fn(t.logger, payload)
	if onDone != nil {
		if result == framework.TransmitError {
			onDone(framework.TransmitError, nil)
		} else {
			onDone(result, body)
		}
	}
}

// CancelTransmit clears transmit_in_progress, cancels any outstanding
// send via NCI, and drops any buffered pending reply (spec §4.5).
func (t *Target) CancelTransmit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transmitInProgress = false
	if t.sendInProgress != 0 {
		t.core.CancelSend(t.sendInProgress)
		t.sendInProgress = 0
	}
	t.pendingReply = nil
	t.onDone = nil
	t.stopTransmitTimerLocked()
}

// StartPresenceCheck issues the protocol-specific probe if one is
// defined and none is already in flight (spec §4.6). Returns false if a
// check could not be started (already in flight, no probe strategy for
// the protocol, or the transmit path refused the probe).
func (t *Target) StartPresenceCheck(onDone func(ok bool)) bool {
	t.mu.Lock()
	if t.presenceCheckArmed || t.presenceCheckFn == nil {
		t.mu.Unlock()
		return false
	}
	fn := t.presenceCheckFn
	t.mu.Unlock()

	wrapped := func(result framework.TransmitResult, payload []byte) {
		t.mu.Lock()
		t.presenceCheckArmed = false
		t.presenceCheckID = 0
		t.mu.Unlock()
		if onDone != nil {
			onDone(result == framework.TransmitOK)
		}
	}

	handle, ok := fn(t, wrapped)
	if !ok {
		return false
	}
	t.mu.Lock()
	t.presenceCheckID = handle
	t.presenceCheckArmed = true
	t.mu.Unlock()
	return true
}

// PresenceCheckInFlight reports whether a probe issued by
// StartPresenceCheck has not yet completed.
func (t *Target) PresenceCheckInFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presenceCheckArmed
}

// Sequence returns the framework Sequence associated with the
// most-recently-issued transmit, if any.
func (t *Target) Sequence() framework.Sequence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Detach severs the target from NCI: removes its data-packet handler and
// nulls its back-pointer to the adapter (spec §5, "targets must never
// outlive their adapter-observable effect").
func (t *Target) Detach() {
	t.mu.Lock()
	core := t.core
	connID := t.connID
	t.owner = nil
	t.mu.Unlock()
	if core != nil {
		core.SetDataHandler(connID, nil)
	}
}
