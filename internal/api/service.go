package api

import (
	"fmt"
	"time"

	"github.com/nciadapter/nciadapter/internal/adapter"
	"github.com/nciadapter/nciadapter/internal/logger"
	"github.com/nciadapter/nciadapter/internal/nci"
	"github.com/nciadapter/nciadapter/internal/storage"
	"github.com/nciadapter/nciadapter/internal/websocket"
	"go.uber.org/zap"
)

// Service is the management API's business layer, bridging HTTP
// handlers to the adapter's control surface, the parameter store, and
// the WebSocket hub used for push notifications (spec §6's management
// API, adapted from the teacher's flow-CRUD Service into a thin facade
// over the single in-process Adapter).
type Service struct {
	adapter *adapter.Adapter
	params  storage.ParamStore
	wsHub   *websocket.Hub
}

// NewService creates a new API service bound to a running adapter.
func NewService(a *adapter.Adapter, params storage.ParamStore, wsHub *websocket.Hub) *Service {
	return &Service{adapter: a, params: params, wsHub: wsHub}
}

// Status returns the adapter's externally visible state (GET /v1/status).
func (s *Service) Status() map[string]interface{} {
	return s.adapter.Status()
}

// SubmitMode implements POST /v1/mode (submit_mode_request, spec §6).
func (s *Service) SubmitMode(mode adapter.OperatingMode) bool {
	accepted := s.adapter.SubmitModeRequest(mode)
	if accepted {
		s.broadcastModeNotify()
	}
	return accepted
}

// CancelMode implements DELETE /v1/mode (cancel_mode_request, spec §6).
func (s *Service) CancelMode() {
	s.adapter.CancelModeRequest()
	s.broadcastModeNotify()
}

func (s *Service) broadcastModeNotify() {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(websocket.MessageTypeModeNotify, map[string]interface{}{
		"current_mode": s.adapter.CurrentMode(),
		"desired_mode": s.adapter.DesiredMode(),
	})
}

// SupportedTechs implements GET /v1/techs (get_supported_techs, spec §6).
func (s *Service) SupportedTechs() nci.TechMask {
	return s.adapter.GetSupportedTechs()
}

// SetAllowedTechs implements PUT /v1/techs (set_allowed_techs, spec §6).
func (s *Service) SetAllowedTechs(requested nci.TechMask) {
	s.adapter.SetAllowedTechs(requested)
}

// ListParams implements GET /v1/params (list_params, spec §6). The
// framework-inherited id set is sourced from the persistent param
// store so the listing reflects ids a caller has ever overridden, not
// just LA_NFCID1.
func (s *Service) ListParams() ([]string, error) {
	inherited, err := s.params.ListParams()
	if err != nil {
		return nil, fmt.Errorf("list params: %w", err)
	}
	ids := make([]string, 0, len(inherited))
	for _, p := range inherited {
		ids = append(ids, p.ID)
	}
	return s.adapter.ListParams(ids), nil
}

// GetParam implements GET /v1/params?id=... (get_param, spec §6):
// prefer the adapter's live NCI-backed value, fall back to the
// persisted override for ids the adapter itself does not interpret.
func (s *Service) GetParam(id string) ([]byte, bool) {
	if v, ok := s.adapter.GetParam(id); ok {
		return v, true
	}
	ov, ok, err := s.params.GetParam(id)
	if err != nil || !ok {
		return nil, false
	}
	return ov.Value, true
}

// SetParams implements PUT /v1/params (set_params, spec §6): forwards
// recognized ids to the adapter/NCI, and persists every id (recognized
// or not) to the param store so overrides survive a restart.
func (s *Service) SetParams(values map[string][]byte, resetOthers bool) error {
	if err := s.adapter.SetParams(values, resetOthers); err != nil {
		return fmt.Errorf("set params: %w", err)
	}
	for id, v := range values {
		override := storage.ParamOverride{ID: id, Value: v, UpdatedAt: time.Now()}
		if err := s.params.SaveParam(override); err != nil {
			logger.Warn("failed to persist param override", zap.String("id", id), zap.Error(err))
		}
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(websocket.MessageTypeParamChangeNotify, map[string]interface{}{
			"ids": paramIDs(values),
		})
	}
	return nil
}

func paramIDs(values map[string][]byte) []string {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	return ids
}

// Reactivate implements POST /v1/reactivate (reactivate(target), spec §6).
func (s *Service) Reactivate() bool {
	return s.adapter.Reactivate()
}

// DeactivateTarget implements POST /v1/targets/{id}/deactivate. The
// path id is accepted for REST symmetry with a future multi-target
// model; today's adapter tracks a single live Target so it is unused.
func (s *Service) DeactivateTarget() {
	s.adapter.DeactivateTarget()
}

// DeactivateInitiator implements POST /v1/initiators/{id}/deactivate.
func (s *Service) DeactivateInitiator() {
	s.adapter.DeactivateInitiator()
}

// RecordActivation appends an outcome to the activation audit log
// (called by main's EventSink wiring, not directly from HTTP).
func (s *Service) RecordActivation(rec storage.ActivationRecord) {
	if err := s.params.AppendActivation(rec); err != nil {
		logger.Warn("failed to append activation record", zap.Error(err))
	}
}

// ListActivations returns the most recent activation audit records.
func (s *Service) ListActivations(limit int) ([]storage.ActivationRecord, error) {
	return s.params.ListActivations(limit)
}

// Close releases the service's owned resources.
func (s *Service) Close() error {
	return s.params.Close()
}
