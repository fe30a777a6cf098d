package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nciadapter/nciadapter/internal/security"
)

type recordingSink struct {
	events []LifecycleEvent
}

func (r *recordingSink) Publish(event LifecycleEvent) {
	r.events = append(r.events, event)
}

func TestPublishShadow_EncryptsPayload(t *testing.T) {
	sink := &recordingSink{}
	enc := security.NewEncryptionService("test-password")

	shadow := Shadow{DeviceID: "reader-7", InternalState: "HAVE_TARGET", CurrentMode: "READER_WRITER"}
	require.NoError(t, PublishShadow(sink, enc, shadow))

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, EventStateChanged, evt.Type)
	assert.Equal(t, "reader-7", evt.Detail["device_id"])

	ciphertext, ok := evt.Detail["shadow"].(string)
	require.True(t, ok)
	assert.NotContains(t, ciphertext, "HAVE_TARGET")

	plaintext, err := enc.DecryptShadowPayload(ciphertext)
	require.NoError(t, err)
	assert.Contains(t, string(plaintext), "HAVE_TARGET")
}
