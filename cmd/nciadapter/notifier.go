package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/adapter"
	"github.com/nciadapter/nciadapter/internal/metrics"
	"github.com/nciadapter/nciadapter/internal/nci"
	"github.com/nciadapter/nciadapter/internal/telemetry"
	"github.com/nciadapter/nciadapter/internal/websocket"
)

// eventNotifier implements adapter.Notifier, fanning out confirmed
// mode/parameter transitions to the WebSocket hub, the metrics counters,
// and every telemetry.EventSink, distinct from api.Service's own
// optimistic broadcast on request acceptance (adapter/state_machine.go's
// Notifier doc comment draws this boundary explicitly).
type eventNotifier struct {
	wsHub   *websocket.Hub
	metrics *metrics.Metrics
	sinks   []telemetry.EventSink
	logger  *zap.Logger
}

func newEventNotifier(wsHub *websocket.Hub, m *metrics.Metrics, sinks []telemetry.EventSink, logger *zap.Logger) *eventNotifier {
	return &eventNotifier{wsHub: wsHub, metrics: m, sinks: sinks, logger: logger}
}

func (n *eventNotifier) ModeNotify(mode adapter.OperatingMode, confirmed bool) {
	n.metrics.IncrementModeChanges()
	n.logger.Debug("mode notify", zap.Uint32("mode", uint32(mode)), zap.Bool("confirmed", confirmed))
	n.wsHub.Broadcast(websocket.MessageTypeModeNotify, map[string]interface{}{
		"mode":      mode,
		"confirmed": confirmed,
	})
	n.publish(telemetry.EventModeChanged, map[string]interface{}{
		"mode":      mode,
		"confirmed": confirmed,
	})
}

func (n *eventNotifier) ParamChangeNotify(id nci.ParamID) {
	n.wsHub.Broadcast(websocket.MessageTypeParamChangeNotify, map[string]interface{}{
		"param_id": id,
	})
	n.publish(telemetry.EventParamChanged, map[string]interface{}{
		"param_id": id,
	})
}

func (n *eventNotifier) publish(eventType telemetry.LifecycleEventType, detail map[string]interface{}) {
	event := telemetry.LifecycleEvent{Type: eventType, Timestamp: time.Now(), Detail: detail}
	for _, sink := range n.sinks {
		sink.Publish(event)
	}
}
