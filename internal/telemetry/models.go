package telemetry

import "time"

// TunnelMessage is one frame of the WebSocket tunnel protocol, adapted
// from the teacher's saas.TunnelMessage.
type TunnelMessage struct {
	Type      string                 `json:"type"` // connect, connected, ping, pong, command, response, event
	ID        string                 `json:"id,omitempty"`
	DeviceID  string                 `json:"device_id,omitempty"`
	APIKey    string                 `json:"api_key,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Data      interface{}            `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
}

// LifecycleEventType enumerates the adapter events fanned out to
// telemetry sinks (spec §6's notifications plus per-endpoint gone/
// reactivated events raised on the framework tag/peer/host objects).
type LifecycleEventType string

const (
	EventTagArrived     LifecycleEventType = "tag_arrived"
	EventTagGone        LifecycleEventType = "tag_gone"
	EventInitiatorGone  LifecycleEventType = "initiator_gone"
	EventReactivated    LifecycleEventType = "reactivated"
	EventModeChanged    LifecycleEventType = "mode_changed"
	EventParamChanged   LifecycleEventType = "param_changed"
	EventStateChanged   LifecycleEventType = "state_changed"
)

// LifecycleEvent is one adapter lifecycle occurrence streamed to a sink.
type LifecycleEvent struct {
	Type      LifecycleEventType     `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
}

// EventSink receives adapter lifecycle events. Implementations must not
// block the caller for long — delivery is fire-and-forget/buffered per
// spec §5 (telemetry never sits on the adapter's single-threaded loop).
type EventSink interface {
	Publish(event LifecycleEvent)
}

// Shadow is a last-known-state snapshot of the adapter, mirroring the
// teacher's device shadow concept but scoped to the adapter's own
// visible state instead of an arbitrary desired/reported key-value map.
type Shadow struct {
	DeviceID       string    `json:"device_id"`
	InternalState  string    `json:"internal_state"`
	ActiveIntf     string    `json:"active_intf,omitempty"`
	CurrentMode    string    `json:"current_mode"`
	ActiveTechs    string    `json:"active_techs"`
	UpdatedAt      time.Time `json:"updated_at"`
}
