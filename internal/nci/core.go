// Package nci defines the boundary to the NCI (NFC Controller Interface)
// protocol stack. It is a port: an interface the adapter core programs
// against, not an implementation of the NCI state machine, message framing,
// or HAL I/O — those stay out of scope per the adapter's Non-goals.
package nci

import "sync"

// RFState mirrors the subset of NCI RF-discovery states the adapter cares
// about. The full NCI state machine lives below this boundary.
type RFState int

const (
	StateIdle RFState = iota
	StateDiscovery
	StatePollActive
	StateListenActive
)

func (s RFState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDiscovery:
		return "DISCOVERY"
	case StatePollActive:
		return "POLL_ACTIVE"
	case StateListenActive:
		return "LISTEN_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// ParamID enumerates NCI-side configuration parameters the adapter passes
// through to the upper layer. Only LA_NFCID1 is recognized today (spec
// §4.7); the type leaves room for more without touching callers.
type ParamID int

const (
	ParamLANFCID1 ParamID = iota
)

// SendStatus is reported to a SendData completion callback.
type SendStatus int

const (
	SendOK SendStatus = iota
	SendError
)

// StaticRFConnID is the reserved connection id NCI uses for the single
// active RF interface's data path (spec §6, "use the constant the NCI
// stack exposes").
const StaticRFConnID = 0x00

// FrameStatus is the trailing status byte NCI appends to Frame-RF-interface
// data packets (spec §4.5, §6 wire constants).
type FrameStatus byte

const (
	StatusOK               FrameStatus = 0x00
	StatusOK1Bit           FrameStatus = 0x01
	StatusOK2Bit           FrameStatus = 0x02
	StatusOK3Bit           FrameStatus = 0x03
	StatusOK4Bit           FrameStatus = 0x04
	StatusOK5Bit           FrameStatus = 0x05
	StatusOK6Bit           FrameStatus = 0x06
	StatusOK7Bit           FrameStatus = 0x07
	StatusRFFrameCorrupted FrameStatus = 0xE3
)

// IsSuccess reports whether s is one of the documented success codes
// (STATUS_OK or STATUS_OK_n_BIT for n=1..7).
func (s FrameStatus) IsSuccess() bool {
	return s >= StatusOK && s <= StatusOK7Bit
}

// Core is the adapter's view of the NCI stack: RF state, data path, and
// parameter access. Implementations translate these calls into real NCI
// command/response/notification traffic.
type Core interface {
	CurrentState() RFState
	NextState() RFState

	CommandDiscovery() error
	CommandIdle() error

	// SendData starts an asynchronous send on connID, invoking onComplete
	// exactly once when the controller reports the send finished (success
	// or failure). The returned handle may be passed to CancelSend.
	SendData(connID int, payload []byte, onComplete func(status SendStatus)) (handle uint64)
	CancelSend(handle uint64)

	// SetDataHandler installs the callback invoked for inbound data
	// packets on connID. Passing nil clears it.
	SetDataHandler(connID int, fn func(payload []byte))

	GetParam(id ParamID) (value []byte, ok bool)
	SetParam(id ParamID, value []byte, reset bool) error

	// SetTechMask pushes the allowed listen/poll technology mask to the
	// controller (mode/tech management, spec §4.4).
	SetTechMask(mask TechMask) error
	SupportedTechs() TechMask

	// SetOpMode pushes the operating op-mode mask (RW/PEER/CE × POLL/LISTEN).
	SetOpMode(mask OpMode) error

	// OnStateChanged / OnActivated / OnDataPacket / OnParamChanged register
	// the adapter's callbacks. A Core implementation calls these as NCI
	// events occur; only one subscriber is supported, matching the
	// single-adapter-per-core ownership model (spec §5, §9 Global state).
	OnStateChanged(fn func(current, next RFState))
	OnActivated(fn func(ntf ActivationNotification))
	OnDataPacket(fn func(connID int, payload []byte))
	OnParamChanged(fn func(id ParamID))
}

// Transport is the physical/logical link beneath Core: the thing that
// actually talks to the NFC controller chip. Non-goal: implementing HAL
// I/O — Transport is a port other packages (internal/nci's own
// implementations) satisfy, never the adapter core itself.
type Transport interface {
	Open() error
	Close() error
	Write(frame []byte) (int, error)
	SetReadHandler(fn func(frame []byte))
}

// RFIntf is the RF-level interface presented by the controller for an
// activated endpoint.
type RFIntf int

const (
	RFIntfFrame RFIntf = iota
	RFIntfISODEP
	RFIntfNFCDEP
	RFIntfNFCEEDirect
	RFIntfProprietary
)

// Protocol is the tag/peer-level protocol of an activated endpoint.
type Protocol int

const (
	ProtoUndetermined Protocol = iota
	ProtoT1T
	ProtoT2T
	ProtoT3T
	ProtoT5T
	ProtoISODEP
	ProtoNFCDEP
	ProtoProprietary
)

// Mode is the RF bit-rate/role combination of an activation.
type Mode int

const (
	ModePassivePollA Mode = iota
	ModePassivePollB
	ModePassivePollF
	ModePassivePollV
	ModeActivePollA
	ModeActivePollF
	ModePassiveListenA
	ModePassiveListenB
	ModePassiveListenF
	ModeActiveListenA
	ModeActiveListenF
	ModePassiveListenV
)

// IsPoll reports whether mode is a Poll-side (reader) mode as opposed to
// Listen-side (card-emulation / P2P-target).
func (m Mode) IsPoll() bool {
	switch m {
	case ModePassivePollA, ModePassivePollB, ModePassivePollF, ModePassivePollV,
		ModeActivePollA, ModeActivePollF:
		return true
	default:
		return false
	}
}

// PollAParam is the parsed Poll-A technology-specific mode parameter.
type PollAParam struct {
	SenseRes  [2]byte
	NFCID1Len int
	NFCID1    []byte
	SelRes    byte
	SelResLen int // 0 if no SEL_RES present (single Cascade Level)
}

// PollBParam is the parsed Poll-B technology-specific mode parameter.
type PollBParam struct {
	NFCID0   []byte
	FSC      int
	AppData  []byte
	ProtInfo []byte
}

// PollFParam is the parsed Poll-F technology-specific mode parameter.
type PollFParam struct {
	BitRate int
	NFCID2  []byte
}

// ListenFParam is the parsed Listen-F technology-specific mode parameter.
type ListenFParam struct {
	LocalNFCID2 []byte
}

// ModeParam is the tagged-union parsed mode parameter (spec §3). Exactly
// one field is non-nil depending on Mode.
type ModeParam struct {
	PollA   *PollAParam
	PollB   *PollBParam
	PollF   *PollFParam
	ListenF *ListenFParam
}

// IsoDepPollAParam is the ISO-DEP activation parameter on the Poll-A side
// (the ATS / RATS response fields the adapter cares about for matching).
type IsoDepPollAParam struct {
	ATSBytes []byte
}

// IsoDepPollBParam is the ISO-DEP activation parameter on the Poll-B side.
type IsoDepPollBParam struct {
	FSC      int
	AppData  []byte
	ProtInfo []byte
}

// NFCDepPollParam / NFCDepListenParam are the NFC-DEP activation
// parameters on the initiator (poll) / target (listen) sides respectively.
type NFCDepPollParam struct {
	ATRResBytes []byte
}

type NFCDepListenParam struct {
	ATRReqBytes []byte
}

// ActivationParam is the tagged-union parsed activation parameter.
type ActivationParam struct {
	IsoDepPollA *IsoDepPollAParam
	IsoDepPollB *IsoDepPollBParam
	NFCDepPoll  *NFCDepPollParam
	NFCDepListen *NFCDepListenParam
}

// ActivationNotification is what NCI reports when an RF interface becomes
// active (spec §3).
type ActivationNotification struct {
	RFIntf                RFIntf
	Protocol              Protocol
	Mode                  Mode
	ModeParamBytes        []byte
	ActivationParamBytes  []byte
	ModeParam             ModeParam
	ActivationParam       ActivationParam
}

// TechMask is a bitmask over listen/poll technologies A/B/F and their
// sub-variants, used both for "supported/active techs" and for CE tech
// locking (spec §4.3, §4.4).
type TechMask uint32

const (
	TechPollA TechMask = 1 << iota
	TechPollB
	TechPollF
	TechPollV
	TechAListen
	TechBListen
	TechFListen
	TechAll = TechPollA | TechPollB | TechPollF | TechPollV | TechAListen | TechBListen | TechFListen
)

// OpMode is the NCI-facing operating-mode bitmask (spec §4.4).
type OpMode uint32

const (
	OpModeRW OpMode = 1 << iota
	OpModePeer
	OpModeCE
	OpModePoll
	OpModeListen
)

var (
	globalCoreMu sync.RWMutex
	globalCore   Core
)

// SetGlobalCore installs the process-wide Core instance. Grounded on the
// teacher's SetGlobalHAL/GetGlobalHAL registry (internal/hal/hal.go):
// the adapter is the only long-lived consumer, but the management API and
// CLI need to reach it without threading a reference through every call.
func SetGlobalCore(c Core) {
	globalCoreMu.Lock()
	defer globalCoreMu.Unlock()
	globalCore = c
}

// GetGlobalCore returns the process-wide Core instance, or nil if none has
// been installed yet.
func GetGlobalCore() Core {
	globalCoreMu.RLock()
	defer globalCoreMu.RUnlock()
	return globalCore
}
