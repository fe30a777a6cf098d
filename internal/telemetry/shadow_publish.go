package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nciadapter/nciadapter/internal/security"
)

// PublishShadow serializes shadow, encrypts the payload with enc, and
// fans it out to sink as a lifecycle event. Used by the adapter's
// periodic shadow-diff loop (main) to push state snapshots over
// whichever EventSink (Bridge, MQTTPublisher) is wired in, keeping the
// device's internal/current-mode/active-techs fields opaque in transit.
func PublishShadow(sink EventSink, enc *security.EncryptionService, shadow Shadow) error {
	shadow.UpdatedAt = time.Now()
	raw, err := json.Marshal(shadow)
	if err != nil {
		return fmt.Errorf("telemetry: marshal shadow: %w", err)
	}

	ciphertext, err := enc.EncryptShadowPayload(raw)
	if err != nil {
		return fmt.Errorf("telemetry: encrypt shadow: %w", err)
	}

	sink.Publish(LifecycleEvent{
		Type:      EventStateChanged,
		Timestamp: shadow.UpdatedAt,
		Detail: map[string]interface{}{
			"device_id": shadow.DeviceID,
			"shadow":    ciphertext,
		},
	})
	return nil
}
