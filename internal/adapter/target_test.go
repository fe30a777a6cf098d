package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
)

// The ISO-DEP 2,500ms transmit bound (spec §4.5) must be enforced even
// when neither a send-completion nor an inbound reply ever arrives.
func TestTarget_TransmitTimeout_FiresTransmitError(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoISODEP, nci.RFIntfISODEP, nil)
	target.transmitTimeout = 20 * time.Millisecond

	done := make(chan framework.TransmitResult, 1)
	_, err := target.Transmit([]byte{0x00, 0xA4}, nil, func(r framework.TransmitResult, p []byte) {
		done <- r
	})
	require.NoError(t, err)

	select {
	case result := <-done:
		assert.Equal(t, framework.TransmitError, result)
	case <-time.After(time.Second):
		t.Fatal("expected transmit timeout to fire transmit_done(ERROR)")
	}
}

// A send-complete that beats the timeout must finalize normally and not
// also fire a spurious timeout error afterward.
func TestTarget_TransmitTimeout_CancelledBySendComplete(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoISODEP, nci.RFIntfISODEP, nil)
	target.transmitTimeout = 50 * time.Millisecond

	var results []framework.TransmitResult
	handle, err := target.Transmit([]byte{0x00, 0xA4}, nil, func(r framework.TransmitResult, p []byte) {
		results = append(results, r)
	})
	require.NoError(t, err)

	core.CompleteSend(handle, nci.SendOK)
	core.FireDataPacket(nci.StaticRFConnID, []byte{0x90, 0x00})

	time.Sleep(100 * time.Millisecond)
	require.Len(t, results, 1)
	assert.Equal(t, framework.TransmitOK, results[0])
}

// S2 — ISO-DEP send/reply race: a data packet arrives before send-complete
// fires; the adapter must buffer it and only deliver transmit_done once
// the send actually completes.
func TestTarget_S2_SendReplyRace(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoISODEP, nci.RFIntfISODEP, nil)

	var result framework.TransmitResult
	var payload []byte
	var done bool
	handle, err := target.Transmit([]byte{0x00, 0xA4}, nil, func(r framework.TransmitResult, p []byte) {
		done = true
		result = r
		payload = p
	})
	require.NoError(t, err)

	core.FireDataPacket(nci.StaticRFConnID, []byte{0x90, 0x00})
	assert.False(t, done, "transmit_done must not fire before send_complete")

	core.CompleteSend(handle, nci.SendOK)
	require.True(t, done)
	assert.Equal(t, framework.TransmitOK, result)
	assert.Equal(t, []byte{0x90, 0x00}, payload)
}

// S3 — Frame interface corrupted status: trailing STATUS_RF_FRAME_CORRUPTED
// yields transmit_done(ERROR); STATUS_OK_3_BIT yields success with the
// status byte stripped.
func TestTarget_S3_FrameCorruptedStatus(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoT2T, nci.RFIntfFrame, nil)

	var result framework.TransmitResult
	handle, err := target.Transmit([]byte{0x30, 0x00}, nil, func(r framework.TransmitResult, p []byte) {
		result = r
	})
	require.NoError(t, err)
	core.CompleteSend(handle, nci.SendOK)
	core.FireDataPacket(nci.StaticRFConnID, []byte{0xD0, 0xD1, byte(nci.StatusRFFrameCorrupted)})
	assert.Equal(t, framework.TransmitError, result)
}

func TestTarget_S3_FrameOK3Bit(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoT2T, nci.RFIntfFrame, nil)

	var result framework.TransmitResult
	var payload []byte
	handle, err := target.Transmit([]byte{0x30, 0x00}, nil, func(r framework.TransmitResult, p []byte) {
		result, payload = r, p
	})
	require.NoError(t, err)
	core.CompleteSend(handle, nci.SendOK)
	core.FireDataPacket(nci.StaticRFConnID, []byte{0xD0, 0xD1, byte(nci.StatusOK3Bit)})
	assert.Equal(t, framework.TransmitOK, result)
	assert.Equal(t, []byte{0xD0, 0xD1}, payload)
}

func TestTarget_DoubleTransmit_Rejected(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoISODEP, nci.RFIntfISODEP, nil)

	_, err := target.Transmit([]byte{0x01}, nil, func(framework.TransmitResult, []byte) {})
	require.NoError(t, err)

	_, err = target.Transmit([]byte{0x02}, nil, func(framework.TransmitResult, []byte) {})
	assert.ErrorIs(t, err, ErrTransmitInFlight)
}

func TestTarget_CancelTransmit_ClearsState(t *testing.T) {
	core := nci.NewMockCore()
	target := NewTarget(nil, core, nci.ProtoISODEP, nci.RFIntfISODEP, nil)

	_, err := target.Transmit([]byte{0x01}, nil, func(framework.TransmitResult, []byte) {})
	require.NoError(t, err)
	target.CancelTransmit()

	_, err = target.Transmit([]byte{0x02}, nil, func(framework.TransmitResult, []byte) {})
	assert.NoError(t, err)
}

func TestTarget_TransmitTimeouts(t *testing.T) {
	core := nci.NewMockCore()
	frame := NewTarget(nil, core, nci.ProtoT2T, nci.RFIntfFrame, nil)
	isoDep := NewTarget(nil, core, nci.ProtoISODEP, nci.RFIntfISODEP, nil)
	nfcDep := NewTarget(nil, core, nci.ProtoNFCDEP, nci.RFIntfNFCDEP, nil)

	assert.Equal(t, ISODepTransmitTimeout, isoDep.transmitTimeout)
	assert.Equal(t, 0, int(nfcDep.transmitTimeout))
	assert.Equal(t, 0, int(frame.transmitTimeout))
}
