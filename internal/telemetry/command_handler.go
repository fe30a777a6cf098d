package telemetry

import (
	"fmt"

	"go.uber.org/zap"
)

// AdapterControl is the subset of the adapter's upward API a cloud
// command may invoke remotely. Implemented by *adapter.Adapter.
type AdapterControl interface {
	Status() map[string]interface{}
	Reactivate() bool
	DeactivateTarget()
	DeactivateInitiator()
}

// AdapterCommandHandler processes commands pushed down from the cloud
// endpoint, adapted from the teacher's EdgeFlowCommandHandler (the
// flow-CRUD actions it dispatched have no equivalent here; this instead
// exposes the adapter's own control surface).
type AdapterCommandHandler struct {
	logger  *zap.Logger
	adapter AdapterControl
}

// NewAdapterCommandHandler creates a command handler bound to adapter.
func NewAdapterCommandHandler(logger *zap.Logger, adapter AdapterControl) *AdapterCommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdapterCommandHandler{logger: logger, adapter: adapter}
}

// HandleCommand implements telemetry.CommandHandler.
func (h *AdapterCommandHandler) HandleCommand(cmd *TunnelMessage) (*TunnelMessage, error) {
	h.logger.Info("processing cloud command", zap.String("action", cmd.Action), zap.String("id", cmd.ID))

	switch cmd.Action {
	case "health_check":
		return &TunnelMessage{Status: "success", Data: map[string]interface{}{"status": "healthy"}}, nil

	case "get_status":
		return &TunnelMessage{Status: "success", Data: h.adapter.Status()}, nil

	case "reactivate":
		ok := h.adapter.Reactivate()
		if !ok {
			return nil, fmt.Errorf("reactivate denied")
		}
		return &TunnelMessage{Status: "success"}, nil

	case "deactivate_target":
		h.adapter.DeactivateTarget()
		return &TunnelMessage{Status: "success"}, nil

	case "deactivate_initiator":
		h.adapter.DeactivateInitiator()
		return &TunnelMessage{Status: "success"}, nil

	default:
		return nil, fmt.Errorf("unknown command action: %s", cmd.Action)
	}
}
