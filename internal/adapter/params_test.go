package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nciadapter/nciadapter/internal/framework"
	"github.com/nciadapter/nciadapter/internal/nci"
)

func TestParams_SetThenGet_LANFCID1(t *testing.T) {
	a, _, _ := newTestAdapter()
	defer a.Stop()

	err := a.SetParams(map[string][]byte{ParamLANFCID1: {0x04, 0x01, 0x02, 0x03}}, false)
	require.NoError(t, err)

	got, ok := a.GetParam(ParamLANFCID1)
	require.True(t, ok)
	assert.Equal(t, []byte{0x04, 0x01, 0x02, 0x03}, got)
}

func TestParams_Get_TruncatesToFrameworkMax(t *testing.T) {
	a, core, _ := newTestAdapter()
	defer a.Stop()

	long := make([]byte, 16)
	for i := range long {
		long[i] = byte(i)
	}
	a.run(func() { _ = core.SetParam(nci.ParamLANFCID1, long, false) })

	got, ok := a.GetParam(ParamLANFCID1)
	require.True(t, ok)
	assert.Len(t, got, FrameworkMaxNFCID1Len)
}

func TestParams_Get_UnrecognizedID(t *testing.T) {
	a, _, _ := newTestAdapter()
	defer a.Stop()
	_, ok := a.GetParam("NOT_A_REAL_PARAM")
	assert.False(t, ok)
}

func TestParams_ListParams_IncludesLANFCID1(t *testing.T) {
	a, _, _ := newTestAdapter()
	defer a.Stop()
	list := a.ListParams([]string{"INHERITED_ONE"})
	assert.Contains(t, list, ParamLANFCID1)
	assert.Contains(t, list, "INHERITED_ONE")
}

type capturingNotifier struct {
	paramChanges []nci.ParamID
	modeNotifies int
}

func (n *capturingNotifier) ModeNotify(OperatingMode, bool) { n.modeNotifies++ }
func (n *capturingNotifier) ParamChangeNotify(id nci.ParamID) {
	n.paramChanges = append(n.paramChanges, id)
}

func TestParamChangeNotify_OnNCIChange(t *testing.T) {
	core := nci.NewMockCore()
	fw := framework.NewMockFramework()
	notifier := &capturingNotifier{}
	a := NewAdapter(core, fw, nil, notifier)
	a.Start()
	defer a.Stop()

	core.FireParamChanged(nci.ParamLANFCID1)
	a.run(func() {}) // barrier: the dispatch above already ran on the loop via run()

	assert.Contains(t, notifier.paramChanges, nci.ParamLANFCID1)
}
