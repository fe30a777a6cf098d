package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShadowTracker_FirstSnapshotAlwaysDiffers(t *testing.T) {
	tracker := NewShadowTracker()
	changed := tracker.Diff(Shadow{InternalState: "IDLE", CurrentMode: "READER_WRITER"})
	assert.True(t, changed)
}

func TestShadowTracker_IdenticalSnapshotDoesNotDiffer(t *testing.T) {
	tracker := NewShadowTracker()
	s := Shadow{InternalState: "HAVE_TARGET", CurrentMode: "READER_WRITER", ActiveTechs: "POLL_A"}

	assert.True(t, tracker.Diff(s))
	assert.False(t, tracker.Diff(s))
}

func TestShadowTracker_ChangedFieldTriggersDiff(t *testing.T) {
	tracker := NewShadowTracker()
	tracker.Diff(Shadow{InternalState: "IDLE"})

	changed := tracker.Diff(Shadow{InternalState: "HAVE_TARGET"})
	assert.True(t, changed)

	current, ok := tracker.Current()
	assert.True(t, ok)
	assert.Equal(t, "HAVE_TARGET", current.InternalState)
}
