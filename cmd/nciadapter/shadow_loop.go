package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/adapter"
	"github.com/nciadapter/nciadapter/internal/api"
	"github.com/nciadapter/nciadapter/internal/security"
	"github.com/nciadapter/nciadapter/internal/storage"
	"github.com/nciadapter/nciadapter/internal/telemetry"
)

// shadowLoopInterval is how often the diff loop samples Adapter.Status.
// The adapter's own Notifier only covers mode/param changes (its own doc
// comment: per-endpoint gone/reactivated events are delivered on the
// framework objects instead), so activation/deactivation transitions for
// the audit log and telemetry shadow are detected here by polling.
const shadowLoopInterval = 2 * time.Second

// activityTracker records the most recent activation time for
// health.LastActivationAgeHealthCheck, updated only by runShadowLoop.
type activityTracker struct {
	mu   sync.RWMutex
	last time.Time
}

func (t *activityTracker) mark(at time.Time) {
	t.mu.Lock()
	t.last = at
	t.mu.Unlock()
}

func (t *activityTracker) Last() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// runShadowLoop polls a.Status(), publishes a Shadow snapshot to every
// telemetry sink when it changes, and records activation/deactivation
// transitions to both the activity tracker and the activation audit log.
func runShadowLoop(ctx context.Context, a *adapter.Adapter, service *api.Service, deviceID string, enc *security.EncryptionService, sinks []telemetry.EventSink, activity *activityTracker, redisCache *storage.RedisActivationCache, logger *zap.Logger) {
	tracker := telemetry.NewShadowTracker()
	ticker := time.NewTicker(shadowLoopInterval)
	defer ticker.Stop()

	hadIntf := false
	var lastIntf map[string]interface{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := a.Status()

			shadow := telemetry.Shadow{
				DeviceID:      deviceID,
				InternalState: fmt.Sprintf("%v", status["internal_state"]),
				CurrentMode:   fmt.Sprintf("%v", status["current_mode"]),
				ActiveTechs:   fmt.Sprintf("%v", status["active_techs"]),
			}
			intf, hasIntf := status["active_intf"].(map[string]interface{})
			if hasIntf {
				shadow.ActiveIntf = fmt.Sprintf("%v", intf["rf_intf"])
			}

			if tracker.Diff(shadow) {
				for _, sink := range sinks {
					if err := telemetry.PublishShadow(sink, enc, shadow); err != nil {
						logger.Warn("failed to publish shadow", zap.Error(err))
					}
				}
			}

			switch {
			case hasIntf && !hadIntf:
				now := time.Now()
				activity.mark(now)
				service.RecordActivation(storage.ActivationRecord{
					Protocol:  fmt.Sprintf("%v", intf["protocol"]),
					RFIntf:    fmt.Sprintf("%v", intf["rf_intf"]),
					Mode:      fmt.Sprintf("%v", intf["mode"]),
					Outcome:   "activated",
					Timestamp: now,
				})
				if redisCache != nil {
					snapshot := storage.LastSeenSnapshot{
						Protocol:  fmt.Sprintf("%v", intf["protocol"]),
						RFIntf:    fmt.Sprintf("%v", intf["rf_intf"]),
						Mode:      fmt.Sprintf("%v", intf["mode"]),
						SeenAt:    now,
						StateName: shadow.InternalState,
					}
					if err := redisCache.PublishLastSeen(ctx, deviceID, snapshot); err != nil {
						logger.Warn("failed to publish last-seen snapshot", zap.Error(err))
					}
				}
			case !hasIntf && hadIntf:
				service.RecordActivation(storage.ActivationRecord{
					Protocol:  fmt.Sprintf("%v", lastIntf["protocol"]),
					RFIntf:    fmt.Sprintf("%v", lastIntf["rf_intf"]),
					Mode:      fmt.Sprintf("%v", lastIntf["mode"]),
					Outcome:   "deactivated",
					Timestamp: time.Now(),
				})
			}
			hadIntf = hasIntf
			lastIntf = intf
		}
	}
}
