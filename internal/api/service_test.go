package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nciadapter/nciadapter/internal/adapter"
	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
	"github.com/nciadapter/nciadapter/internal/storage"
	"github.com/nciadapter/nciadapter/internal/websocket"
)

func newTestService(t *testing.T) (*Service, *adapter.Adapter, *nci.MockCore) {
	core := nci.NewMockCore()
	fw := framework.NewMockFramework()
	a := adapter.NewAdapter(core, fw, nil, nil)
	a.Start()
	t.Cleanup(a.Stop)

	store, err := storage.NewFileParamStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hub := websocket.NewHub()
	return NewService(a, store, hub), a, core
}

func TestService_SubmitAndCancelMode(t *testing.T) {
	s, a, _ := newTestService(t)

	accepted := s.SubmitMode(adapter.ModeReaderWriter)
	assert.True(t, accepted)
	assert.Equal(t, adapter.ModeReaderWriter, a.DesiredMode())

	s.CancelMode()
	assert.Equal(t, adapter.OperatingMode(0), a.DesiredMode())
}

func TestService_SupportedAndAllowedTechs(t *testing.T) {
	s, _, _ := newTestService(t)

	supported := s.SupportedTechs()
	assert.NotZero(t, supported)

	s.SetAllowedTechs(nci.TechPollA)
	assert.NotNil(t, s.Status())
}

func TestService_SetAndGetParam_PersistsOverride(t *testing.T) {
	s, _, _ := newTestService(t)

	err := s.SetParams(map[string][]byte{"UNKNOWN_ID": []byte{0xAA, 0xBB}}, false)
	require.NoError(t, err)

	val, ok := s.GetParam("UNKNOWN_ID")
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB}, val)
}

func TestService_ListParams_IncludesPersistedIDs(t *testing.T) {
	s, _, _ := newTestService(t)

	err := s.SetParams(map[string][]byte{"CUSTOM_PARAM": []byte{0x01}}, false)
	require.NoError(t, err)

	ids, err := s.ListParams()
	require.NoError(t, err)
	assert.Contains(t, ids, "CUSTOM_PARAM")
}

func TestService_ActivationLog_RecordAndList(t *testing.T) {
	s, _, _ := newTestService(t)

	s.RecordActivation(storage.ActivationRecord{
		Protocol: "T2T",
		RFIntf:   "frame",
		Mode:     "poll_a",
		Outcome:  "activated",
	})

	records, err := s.ListActivations(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "T2T", records[0].Protocol)
}

func TestService_DeactivateTargetAndInitiator_NoPanic(t *testing.T) {
	s, _, _ := newTestService(t)

	assert.NotPanics(t, func() {
		s.DeactivateTarget()
		s.DeactivateInitiator()
	})
}

func TestService_Reactivate_NoActiveEndpoint(t *testing.T) {
	s, _, _ := newTestService(t)

	assert.False(t, s.Reactivate())
}
