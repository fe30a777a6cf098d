package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Metrics holds the adapter's operational counters/gauges, adapted
// from the teacher's flow/node/API counters into the NCI-domain
// equivalents named in SPEC_FULL.md: activations, reactivations,
// presence checks, transmits, and mode changes.
type Metrics struct {
	// Activation/deactivation metrics (spec §4.3)
	TotalActivations   int64 `json:"total_activations"`
	TotalDeactivations int64 `json:"total_deactivations"`
	TotalReactivations int64 `json:"total_reactivations"`
	FailedReactivations int64 `json:"failed_reactivations"`

	// Presence-check metrics (spec §4.5)
	PresenceChecksOK   int64 `json:"presence_checks_ok"`
	PresenceChecksFail int64 `json:"presence_checks_fail"`

	// Transmit metrics (spec §4.6)
	TransmitsOK    int64 `json:"transmits_ok"`
	TransmitsError int64 `json:"transmits_error"`

	// Mode-change metrics (spec §4.4)
	ModeChanges int64 `json:"mode_changes"`

	// System metrics
	Uptime         int64   `json:"uptime_seconds"`
	MemoryUsed     uint64  `json:"memory_used_bytes"`
	MemoryTotal    uint64  `json:"memory_total_bytes"`
	GoroutineCount int     `json:"goroutine_count"`

	// API metrics
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`

	mu        sync.RWMutex
	startTime time.Time
}

// NewMetrics creates an empty metrics set with its uptime clock started.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// IncrementActivations records a fresh activation (input A, spec §4.3).
func (m *Metrics) IncrementActivations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalActivations++
}

// IncrementDeactivations records a deactivation (input D, spec §4.3).
func (m *Metrics) IncrementDeactivations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalDeactivations++
}

// IncrementReactivations records a reactivate() call outcome.
func (m *Metrics) IncrementReactivations(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalReactivations++
	if !ok {
		m.FailedReactivations++
	}
}

// RecordPresenceCheck records a presence-check outcome (spec §4.5).
func (m *Metrics) RecordPresenceCheck(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.PresenceChecksOK++
	} else {
		m.PresenceChecksFail++
	}
}

// RecordTransmit records a Transmit() outcome (spec §4.6).
func (m *Metrics) RecordTransmit(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.TransmitsOK++
	} else {
		m.TransmitsError++
	}
}

// IncrementModeChanges records an effective mode change (spec §4.4).
func (m *Metrics) IncrementModeChanges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ModeChanges++
}

// IncrementRequests records an inbound management API request.
func (m *Metrics) IncrementRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
}

// IncrementErrors records a management API error response.
func (m *Metrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalErrors++
}

// RecordResponseTime folds duration into a moving average response time.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := float64(duration.Milliseconds())
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = ms
	} else {
		m.AvgResponseTime = (m.AvgResponseTime * 0.9) + (ms * 0.1)
	}
}

// UpdateSystemMetrics refreshes uptime/memory/goroutine gauges.
func (m *Metrics) UpdateSystemMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Uptime = int64(time.Since(m.startTime).Seconds())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.MemoryUsed = memStats.Alloc
	m.MemoryTotal = memStats.Sys

	m.GoroutineCount = runtime.NumGoroutine()
}

// GetMetrics returns a JSON-friendly snapshot of all metrics.
func (m *Metrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"activation": map[string]interface{}{
			"total_activations":   m.TotalActivations,
			"total_deactivations": m.TotalDeactivations,
			"total_reactivations": m.TotalReactivations,
			"failed_reactivations": m.FailedReactivations,
		},
		"presence_check": map[string]interface{}{
			"ok":   m.PresenceChecksOK,
			"fail": m.PresenceChecksFail,
		},
		"transmit": map[string]interface{}{
			"ok":    m.TransmitsOK,
			"error": m.TransmitsError,
		},
		"mode_changes": m.ModeChanges,
		"system": map[string]interface{}{
			"uptime_seconds":     m.Uptime,
			"memory_used_bytes":  m.MemoryUsed,
			"memory_total_bytes": m.MemoryTotal,
			"memory_used_mb":     m.MemoryUsed / 1024 / 1024,
			"goroutines":         m.GoroutineCount,
		},
		"api": map[string]interface{}{
			"total_requests":       m.TotalRequests,
			"total_errors":         m.TotalErrors,
			"avg_response_time_ms": m.AvgResponseTime,
			"error_rate": func() float64 {
				if m.TotalRequests == 0 {
					return 0.0
				}
				return float64(m.TotalErrors) / float64(m.TotalRequests) * 100
			}(),
		},
	}
}

// PrometheusFormat renders metrics in Prometheus text exposition format.
func (m *Metrics) PrometheusFormat() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return `# HELP nciadapter_activations_total Total number of activations
# TYPE nciadapter_activations_total counter
nciadapter_activations_total ` + formatInt64(m.TotalActivations) + `

# HELP nciadapter_deactivations_total Total number of deactivations
# TYPE nciadapter_deactivations_total counter
nciadapter_deactivations_total ` + formatInt64(m.TotalDeactivations) + `

# HELP nciadapter_reactivations_total Total number of reactivate() calls
# TYPE nciadapter_reactivations_total counter
nciadapter_reactivations_total ` + formatInt64(m.TotalReactivations) + `

# HELP nciadapter_reactivations_failed Total number of denied reactivate() calls
# TYPE nciadapter_reactivations_failed counter
nciadapter_reactivations_failed ` + formatInt64(m.FailedReactivations) + `

# HELP nciadapter_presence_checks_ok Successful presence checks
# TYPE nciadapter_presence_checks_ok counter
nciadapter_presence_checks_ok ` + formatInt64(m.PresenceChecksOK) + `

# HELP nciadapter_presence_checks_fail Failed presence checks
# TYPE nciadapter_presence_checks_fail counter
nciadapter_presence_checks_fail ` + formatInt64(m.PresenceChecksFail) + `

# HELP nciadapter_transmits_ok Successful transmits
# TYPE nciadapter_transmits_ok counter
nciadapter_transmits_ok ` + formatInt64(m.TransmitsOK) + `

# HELP nciadapter_transmits_error Failed transmits
# TYPE nciadapter_transmits_error counter
nciadapter_transmits_error ` + formatInt64(m.TransmitsError) + `

# HELP nciadapter_mode_changes_total Total effective mode changes
# TYPE nciadapter_mode_changes_total counter
nciadapter_mode_changes_total ` + formatInt64(m.ModeChanges) + `

# HELP nciadapter_uptime_seconds Uptime in seconds
# TYPE nciadapter_uptime_seconds gauge
nciadapter_uptime_seconds ` + formatInt64(m.Uptime) + `

# HELP nciadapter_memory_used_bytes Memory used in bytes
# TYPE nciadapter_memory_used_bytes gauge
nciadapter_memory_used_bytes ` + formatUint64(m.MemoryUsed) + `

# HELP nciadapter_goroutines Number of goroutines
# TYPE nciadapter_goroutines gauge
nciadapter_goroutines ` + formatInt(m.GoroutineCount) + `

# HELP nciadapter_api_requests_total Total number of API requests
# TYPE nciadapter_api_requests_total counter
nciadapter_api_requests_total ` + formatInt64(m.TotalRequests) + `

# HELP nciadapter_api_errors_total Total number of API errors
# TYPE nciadapter_api_errors_total counter
nciadapter_api_errors_total ` + formatInt64(m.TotalErrors) + `

# HELP nciadapter_api_response_time_ms Average API response time in milliseconds
# TYPE nciadapter_api_response_time_ms gauge
nciadapter_api_response_time_ms ` + formatFloat64(m.AvgResponseTime) + `
`
}

// MetricsMiddleware instruments every request with request/error/latency
// counters.
func MetricsMiddleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		m.IncrementRequests()

		err := c.Next()

		duration := time.Since(start)
		m.RecordResponseTime(duration)

		if c.Response().StatusCode() >= 400 {
			m.IncrementErrors()
		}

		return err
	}
}

// Helper functions
func formatInt64(n int64) string {
	return fmt.Sprintf("%d", n)
}

func formatUint64(n uint64) string {
	return fmt.Sprintf("%d", n)
}

func formatInt(n int) string {
	return fmt.Sprintf("%d", n)
}

func formatFloat64(n float64) string {
	return fmt.Sprintf("%.2f", n)
}
