package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
)

func TestDetect_T2Tag(t *testing.T) {
	fw := framework.NewMockFramework()
	ntf := nci.ActivationNotification{
		RFIntf:   nci.RFIntfFrame,
		Protocol: nci.ProtoT2T,
		Mode:     nci.ModePassivePollA,
		ModeParam: nci.ModeParam{PollA: &nci.PollAParam{NFCID1: []byte{1, 2, 3, 4}, NFCID1Len: 4}},
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Tag)
	assert.Nil(t, result.Peer)
}

func TestDetect_T4ATag(t *testing.T) {
	fw := framework.NewMockFramework()
	ntf := nci.ActivationNotification{
		RFIntf:          nci.RFIntfISODEP,
		Protocol:        nci.ProtoISODEP,
		Mode:            nci.ModePassivePollA,
		ModeParam:       nci.ModeParam{PollA: &nci.PollAParam{}},
		ActivationParam: nci.ActivationParam{IsoDepPollA: &nci.IsoDepPollAParam{}},
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Tag)
}

func TestDetect_T4BTag(t *testing.T) {
	fw := framework.NewMockFramework()
	ntf := nci.ActivationNotification{
		RFIntf:          nci.RFIntfISODEP,
		Protocol:        nci.ProtoISODEP,
		Mode:            nci.ModePassivePollB,
		ModeParam:       nci.ModeParam{PollB: &nci.PollBParam{}},
		ActivationParam: nci.ActivationParam{IsoDepPollB: &nci.IsoDepPollBParam{}},
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Tag)
}

func TestDetect_PeerInitiator_PollA_NFCDEP(t *testing.T) {
	fw := framework.NewMockFramework()
	ntf := nci.ActivationNotification{
		RFIntf:    nci.RFIntfNFCDEP,
		Protocol:  nci.ProtoNFCDEP,
		Mode:      nci.ModePassivePollA,
		ModeParam: nci.ModeParam{PollA: &nci.PollAParam{}},
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Peer)
	assert.Nil(t, result.Tag)
}

func TestDetect_GenericTagFallback(t *testing.T) {
	fw := framework.NewMockFramework()
	fw.AcceptT2Tag = false
	ntf := nci.ActivationNotification{
		RFIntf:    nci.RFIntfFrame,
		Protocol:  nci.ProtoUndetermined,
		Mode:      nci.ModePassivePollA,
		ModeParam: nci.ModeParam{PollA: &nci.PollAParam{}},
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Tag)
}

func TestDetect_NothingMatches_Unmatched(t *testing.T) {
	fw := framework.NewMockFramework()
	fw.AcceptT2Tag, fw.AcceptOtherTag = false, false
	ntf := nci.ActivationNotification{
		RFIntf:   nci.RFIntfFrame,
		Protocol: nci.ProtoUndetermined,
		Mode:     nci.ModePassivePollA,
		// no mode param at all: generic fallback also declines
	}
	result := Detect(fw, ntf)
	assert.False(t, result.Matched)
}

func TestDetect_ListenSide_CardEmulationHost(t *testing.T) {
	fw := framework.NewMockFramework()
	ntf := nci.ActivationNotification{
		RFIntf:   nci.RFIntfISODEP,
		Protocol: nci.ProtoISODEP,
		Mode:     nci.ModePassiveListenA,
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Initiator)
	assert.NotNil(t, result.Host)
	assert.Nil(t, result.Peer)
}

func TestDetect_ListenSide_PeerTarget(t *testing.T) {
	fw := framework.NewMockFramework()
	ntf := nci.ActivationNotification{
		RFIntf:   nci.RFIntfNFCDEP,
		Protocol: nci.ProtoNFCDEP,
		Mode:     nci.ModePassiveListenA,
	}
	result := Detect(fw, ntf)
	require.True(t, result.Matched)
	assert.NotNil(t, result.Initiator)
	assert.NotNil(t, result.Peer)
	assert.Nil(t, result.Host)
}

func TestDetect_ListenSide_NothingMatches_DropsInitiator(t *testing.T) {
	fw := framework.NewMockFramework()
	fw.AcceptTargetPeer, fw.AcceptHost = false, false
	ntf := nci.ActivationNotification{
		RFIntf:   nci.RFIntfProprietary,
		Protocol: nci.ProtoProprietary,
		Mode:     nci.ModePassiveListenF,
	}
	result := Detect(fw, ntf)
	assert.False(t, result.Matched)
	require.NotNil(t, fw.LastInitiator)
	assert.Equal(t, 1, fw.LastInitiator.ReleaseCalls, "unmatched listen-side Initiator must be released, not leaked")
}
