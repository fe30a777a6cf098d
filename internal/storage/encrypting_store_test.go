package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nciadapter/nciadapter/internal/security"
)

func newTestEncryptingStore(t *testing.T) *EncryptingParamStore {
	t.Helper()
	inner, err := NewFileParamStore(t.TempDir())
	require.NoError(t, err)
	return NewEncryptingParamStore(inner, security.NewEncryptionService("test-password"))
}

func TestEncryptingParamStore_SaveGetParam_RoundTrip(t *testing.T) {
	store := newTestEncryptingStore(t)
	defer store.Close()

	override := ParamOverride{ID: "LA_NFCID1", Value: []byte{0x04, 0xAA, 0xBB, 0xCC}, UpdatedAt: time.Now()}
	require.NoError(t, store.SaveParam(override))

	got, ok, err := store.GetParam("LA_NFCID1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, override.Value, got.Value)
}

func TestEncryptingParamStore_ListParams_Decrypts(t *testing.T) {
	store := newTestEncryptingStore(t)
	defer store.Close()

	require.NoError(t, store.SaveParam(ParamOverride{ID: "LA_NFCID1", Value: []byte{0x01, 0x02}}))
	require.NoError(t, store.SaveParam(ParamOverride{ID: "PN_ATR_RES_GEN_BYTES", Value: []byte{0x03, 0x04}}))

	overrides, err := store.ListParams()
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	for _, o := range overrides {
		assert.NotEmpty(t, o.Value)
	}
}

func TestEncryptingParamStore_ActivationLog_RoundTrip(t *testing.T) {
	store := newTestEncryptingStore(t)
	defer store.Close()

	record := ActivationRecord{
		Protocol:  "ISO-DEP",
		RFIntf:    "NFC-A",
		Mode:      "READER_WRITER",
		Outcome:   "activated",
		Timestamp: time.Now(),
	}
	require.NoError(t, store.AppendActivation(record))

	records, err := store.ListActivations(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.Protocol, records[0].Protocol)
	assert.Equal(t, record.RFIntf, records[0].RFIntf)
	assert.Equal(t, record.Mode, records[0].Mode)
	assert.Equal(t, record.Outcome, records[0].Outcome)
}
