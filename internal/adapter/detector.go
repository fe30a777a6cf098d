package adapter

import (
	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
)

// DetectionResult carries whichever framework objects the detector
// managed to construct for a fresh activation notification (spec §4.2).
// Exactly one of (Tag, Peer) is set on the poll side, or exactly one of
// (Peer, Host) alongside Initiator on the listen side; Matched reports
// whether anything accepted the activation at all.
type DetectionResult struct {
	Matched    bool
	Tag        framework.Tag
	Peer       framework.Peer
	Initiator  framework.Initiator
	Host       framework.Host
}

// DetectPollSide runs the poll-side object detector cascade (spec §4.2,
// steps 1-3): peer-initiator, then known tag, then generic tag fallback.
func DetectPollSide(fw framework.Framework, ntf nci.ActivationNotification) DetectionResult {
	if peer, ok := detectPeerInitiator(fw, ntf); ok {
		return DetectionResult{Matched: true, Peer: peer}
	}
	if tag, ok := detectKnownTag(fw, ntf); ok {
		return DetectionResult{Matched: true, Tag: tag}
	}
	if tag, ok := detectGenericTag(fw, ntf); ok {
		return DetectionResult{Matched: true, Tag: tag}
	}
	return DetectionResult{Matched: false}
}

// detectPeerInitiator: NFC-DEP over the NFC-DEP rf_intf, Poll-A or Poll-F
// mode, we act as the NFC-DEP initiator.
func detectPeerInitiator(fw framework.Framework, ntf nci.ActivationNotification) (framework.Peer, bool) {
	if ntf.Protocol != nci.ProtoNFCDEP || ntf.RFIntf != nci.RFIntfNFCDEP {
		return nil, false
	}
	atrRes := framework.NFCDepPollParams{}
	if ntf.ActivationParam.NFCDepPoll != nil {
		atrRes = *ntf.ActivationParam.NFCDepPoll
	}
	switch ntf.Mode {
	case nci.ModePassivePollA, nci.ModeActivePollA:
		return fw.Peers().NewInitiatorPeer(ntf.ModeParam.PollA, nil, atrRes)
	case nci.ModePassivePollF, nci.ModeActivePollF:
		return fw.Peers().NewInitiatorPeer(nil, ntf.ModeParam.PollF, atrRes)
	default:
		return nil, false
	}
}

// detectKnownTag: Type-2 over Frame, or Type-4A/4B over ISO-DEP.
func detectKnownTag(fw framework.Framework, ntf nci.ActivationNotification) (framework.Tag, bool) {
	switch {
	case ntf.Protocol == nci.ProtoT2T && ntf.RFIntf == nci.RFIntfFrame &&
		(ntf.Mode == nci.ModePassivePollA || ntf.Mode == nci.ModeActivePollA):
		if ntf.ModeParam.PollA == nil {
			return nil, false
		}
		return fw.Tags().NewT2Tag(*ntf.ModeParam.PollA)

	case ntf.Protocol == nci.ProtoISODEP && ntf.RFIntf == nci.RFIntfISODEP && ntf.Mode == nci.ModePassivePollA:
		if ntf.ModeParam.PollA == nil || ntf.ActivationParam.IsoDepPollA == nil {
			return nil, false
		}
		return fw.Tags().NewT4ATag(*ntf.ModeParam.PollA, *ntf.ActivationParam.IsoDepPollA)

	case ntf.Protocol == nci.ProtoISODEP && ntf.RFIntf == nci.RFIntfISODEP && ntf.Mode == nci.ModePassivePollB:
		if ntf.ModeParam.PollB == nil || ntf.ActivationParam.IsoDepPollB == nil {
			return nil, false
		}
		return fw.Tags().NewT4BTag(*ntf.ModeParam.PollB, *ntf.ActivationParam.IsoDepPollB)

	default:
		return nil, false
	}
}

// detectGenericTag is the fallback: register whatever Poll-A/Poll-B
// snapshot is available as an "other tag" (spec §4.2 step 3).
func detectGenericTag(fw framework.Framework, ntf nci.ActivationNotification) (framework.Tag, bool) {
	if ntf.ModeParam.PollA == nil && ntf.ModeParam.PollB == nil {
		return nil, false
	}
	return fw.Tags().NewOtherTag(ntf.ModeParam.PollA, ntf.ModeParam.PollB)
}

// DetectListenSide runs the listen-side object detector cascade (spec
// §4.2): always constructs the owned Initiator entity first, then tries
// peer-target, then card-emulation host.
func DetectListenSide(fw framework.Framework, ntf nci.ActivationNotification) DetectionResult {
	initiator, ok := fw.Initiators().NewInitiator()
	if !ok {
		return DetectionResult{Matched: false}
	}

	if ntf.RFIntf == nci.RFIntfNFCDEP && (ntf.Mode == nci.ModePassiveListenA || ntf.Mode == nci.ModePassiveListenF || ntf.Mode == nci.ModeActiveListenA || ntf.Mode == nci.ModeActiveListenF) {
		atrReq := framework.NFCDepListenParams{}
		if ntf.ActivationParam.NFCDepListen != nil {
			atrReq = *ntf.ActivationParam.NFCDepListen
		}
		if peer, ok := fw.Peers().NewTargetPeer(atrReq); ok {
			return DetectionResult{Matched: true, Initiator: initiator, Peer: peer}
		}
	}

	if ntf.RFIntf == nci.RFIntfISODEP {
		if host, ok := fw.Hosts().NewHost(); ok {
			return DetectionResult{Matched: true, Initiator: initiator, Host: host}
		}
	}

	// Neither peer nor host claimed this activation: the Initiator built
	// above was never installed, so nothing else will ever tear it down.
	initiator.Release()
	return DetectionResult{Matched: false}
}

// Detect dispatches to the poll-side or listen-side cascade based on the
// activation's mode.
func Detect(fw framework.Framework, ntf nci.ActivationNotification) DetectionResult {
	if ntf.Mode.IsPoll() {
		return DetectPollSide(fw, ntf)
	}
	return DetectListenSide(fw, ntf)
}
