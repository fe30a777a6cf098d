// Package framework defines the upper-layer NFC daemon object model the
// adapter core talks to: tag/peer/host construction, lifecycle
// notifications, and sequenced transactions. It is a port (interfaces
// only) — implementing tag-content decoding or LLCP is out of scope.
package framework

import "github.com/nciadapter/nciadapter/internal/nci"

// Gone is embedded by every framework-owned object the adapter can hold a
// weak reference to. It exposes only the object's registration id; there
// is no destruction callback, and the adapter clears its weak references
// itself (spec §9, Ownership and weak references: a registration-ID
// scheme).
type Gone interface {
	// ID is the opaque registration id the adapter stores instead of a raw
	// pointer, so a later access can ask the framework "is this still
	// alive" without risking a dangling reference.
	ID() string
}

// Reactivatable is implemented by every endpoint object (Tag, Peer,
// Initiator, Host) that receives a `reactivated` notification when the
// same physical endpoint comes back after a brief RF loss.
type Reactivatable interface {
	Reactivated()
}

// Tag is a poll-side tag object (Type-2, Type-4A, Type-4B, or a generic
// "other tag" fallback). Weakly observed by the adapter's `tag` field. It
// receives `reactivated` when the same physical tag comes back after a
// poll-side reactivation (spec §4.3, REACTIVATING_TARGET -> HAVE_TARGET).
type Tag interface {
	Gone
	Reactivatable
}

// Initiator is the owned listen-side logical endpoint the adapter creates
// for every listen-side activation (spec §3: "initiator: optional owned
// framework Initiator (listen-side)"). It receives `reactivated` when the
// same physical remote comes back after a CE-reactivation.
//
// DetectListenSide constructs the Initiator ahead of the peer/host
// sub-detection, so it can end up unmatched (neither a peer nor a host
// accepted the activation). Release tears down that case explicitly: the
// adapter never installs the object (never assigns it to its own state),
// so nothing else will ever call Gone's ID() against it or clear a weak
// reference to it.
type Initiator interface {
	Gone
	Reactivatable
	Release()
}

// Host is a logical ISO-DEP card-emulation endpoint, weakly observed by
// the adapter's `host` field once the listen-side detector recognizes a
// card-emulation activation.
type Host interface {
	Gone
	Reactivatable
}

// Peer is a P2P peer object, weakly observed by the adapter's `peer`
// field on either the poll side (we are the NFC-DEP initiator, remote is
// target) or the listen side (we are the NFC-DEP target, remote is
// initiator). It receives `reactivated` on the same poll-side
// reactivation as Tag.
type Peer interface {
	Gone
	Reactivatable
}

// TransmitResult is delivered to a Target's transmit completion callback.
type TransmitResult int

const (
	TransmitOK TransmitResult = iota
	TransmitError
)

// Sequence groups related transmits issued against a Target and indicates
// whether interleaved presence checks are permitted while it is active
// (spec §4.6, GLOSSARY).
type Sequence interface {
	AllowsPresenceCheck() bool
}

// PollAParams / PollBParams mirror the nci package's parsed mode
// parameters, exposed to framework factories in framework-native form so
// this package does not need to import adapter internals.
type PollAParams = nci.PollAParam
type PollBParams = nci.PollBParam
type PollFParams = nci.PollFParam

// IsoDepPollAParams / IsoDepPollBParams / NFCDepPollParams mirror the
// nci package's parsed activation parameters.
type IsoDepPollAParams = nci.IsoDepPollAParam
type IsoDepPollBParams = nci.IsoDepPollBParam
type NFCDepPollParams = nci.NFCDepPollParam
type NFCDepListenParams = nci.NFCDepListenParam

// TagFactory constructs typed poll-side tag objects (object detector,
// spec §4.2).
type TagFactory interface {
	NewT2Tag(pollA PollAParams) (Tag, bool)
	NewT4ATag(pollA PollAParams, isoDep IsoDepPollAParams) (Tag, bool)
	NewT4BTag(pollB PollBParams, isoDep IsoDepPollBParams) (Tag, bool)
	NewOtherTag(pollA *PollAParams, pollB *PollBParams) (Tag, bool)
}

// PeerFactory constructs P2P peer objects, by technology. NewInitiatorPeer
// is used on the poll side (we act as NFC-DEP initiator, remote is
// target); NewTargetPeer is used on the listen side (we act as NFC-DEP
// target, remote is initiator) once the adapter has already created the
// owned Initiator entity for that listen-side activation.
type PeerFactory interface {
	NewInitiatorPeer(pollA *PollAParams, pollF *PollFParams, atrRes NFCDepPollParams) (Peer, bool)
	NewTargetPeer(atrReq NFCDepListenParams) (Peer, bool)
}

// HostFactory constructs card-emulation host objects, weakly observed via
// the adapter's `host` field.
type HostFactory interface {
	NewHost() (Host, bool)
}

// InitiatorFactory constructs the owned listen-side Initiator entity
// itself, ahead of the peer/host sub-detection (spec §4.2: "the detector
// instead creates a framework Initiator and tries...").
type InitiatorFactory interface {
	NewInitiator() (Initiator, bool)
}

// Framework aggregates the factories the adapter needs. Grounded on the
// teacher's HAL aggregate-interface shape (internal/hal/hal.go).
type Framework interface {
	Tags() TagFactory
	Peers() PeerFactory
	Hosts() HostFactory
	Initiators() InitiatorFactory
}
