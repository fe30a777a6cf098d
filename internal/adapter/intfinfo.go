package adapter

import (
	"bytes"

	"github.com/nciadapter/nciadapter/internal/nci"
)

// RandomNFCID1Prefix is the first byte of a 4-byte NFCID1 that marks it as
// a per-activation random UID (NFC Forum Digital Protocol), rather than a
// fixed factory UID (spec §4.1, §6 wire constants).
const RandomNFCID1Prefix = 0x08

// IntfInfo is a copy of an activation notification's
// {rf_intf, protocol, mode, mode_param, activation_param}. It is the
// adapter's "what we last saw" reference used by the match predicate to
// decide whether a fresh activation is the same physical endpoint.
type IntfInfo struct {
	RFIntf               nci.RFIntf
	Protocol              nci.Protocol
	Mode                  nci.Mode
	ModeParamBytes        []byte
	ActivationParamBytes  []byte
	ModeParam             nci.ModeParam
	ActivationParam       nci.ActivationParam
}

// NewIntfInfo copies ntf. The raw mode/activation parameter byte slices
// are cloned, so later mutation of those buffers cannot change a stored
// IntfInfo. The parsed ModeParam and ActivationParam are copied by value
// only: the records their pointer fields refer to, and the slices inside
// those records, are shared with ntf, not copied.
func NewIntfInfo(ntf nci.ActivationNotification) IntfInfo {
	return IntfInfo{
		RFIntf:               ntf.RFIntf,
		Protocol:             ntf.Protocol,
		Mode:                 ntf.Mode,
		ModeParamBytes:       cloneBytes(ntf.ModeParamBytes),
		ActivationParamBytes: cloneBytes(ntf.ActivationParamBytes),
		ModeParam:            ntf.ModeParam,
		ActivationParam:      ntf.ActivationParam,
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Matches implements the interface-match predicate (spec §4.1): does a
// fresh activation notification represent the same physical endpoint as
// the stored IntfInfo? All three conditions must hold.
func (old IntfInfo) Matches(ntf nci.ActivationNotification) bool {
	if old.RFIntf != ntf.RFIntf || old.Protocol != ntf.Protocol || old.Mode != ntf.Mode {
		return false
	}
	if !modeParamMatches(old, ntf) {
		return false
	}
	return bytes.Equal(old.ActivationParamBytes, ntf.ActivationParamBytes)
}

func modeParamMatches(old IntfInfo, ntf nci.ActivationNotification) bool {
	switch {
	case old.Mode == nci.ModePassivePollA && (old.RFIntf == nci.RFIntfFrame || old.RFIntf == nci.RFIntfISODEP):
		return pollAMatches(old.ModeParam.PollA, ntf.ModeParam.PollA)
	case old.Mode == nci.ModePassivePollB && old.RFIntf == nci.RFIntfISODEP:
		return pollBMatches(old.ModeParam.PollB, ntf.ModeParam.PollB)
	default:
		return bytes.Equal(old.ModeParamBytes, ntf.ModeParamBytes)
	}
}

// pollAMatches compares Poll-A mode params per spec §4.1: sel_res,
// sel_res_len, nfcid1_len, sens_res must match; nfcid1 tolerates a
// regenerated random UID (first byte 0x08, length 4) and otherwise must
// match byte-exactly.
func pollAMatches(old, fresh *nci.PollAParam) bool {
	if old == nil || fresh == nil {
		return old == fresh
	}
	if old.SelRes != fresh.SelRes || old.SelResLen != fresh.SelResLen {
		return false
	}
	if old.NFCID1Len != fresh.NFCID1Len {
		return false
	}
	if old.SenseRes != fresh.SenseRes {
		return false
	}
	if isRandomNFCID1(old.NFCID1Len, old.NFCID1) && isRandomNFCID1(fresh.NFCID1Len, fresh.NFCID1) {
		return true
	}
	return bytes.Equal(old.NFCID1, fresh.NFCID1)
}

func isRandomNFCID1(length int, id []byte) bool {
	return length == 4 && len(id) >= 1 && id[0] == RandomNFCID1Prefix
}

// pollBMatches compares Poll-B mode params per spec §4.1: fsc, app_data,
// prot_info must match (including length); nfcid0 (the UID) is ignored
// because it may be regenerated after an RF loss.
func pollBMatches(old, fresh *nci.PollBParam) bool {
	if old == nil || fresh == nil {
		return old == fresh
	}
	return old.FSC == fresh.FSC &&
		bytes.Equal(old.AppData, fresh.AppData) &&
		bytes.Equal(old.ProtInfo, fresh.ProtInfo)
}
