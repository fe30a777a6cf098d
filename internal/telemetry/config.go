package telemetry

import "time"

// Config holds cloud-bridge connection settings, adapted from the
// teacher's saas.Config (provisioning fields dropped — auth here is a
// static device ID + API key pair, not a provisioning handshake).
type Config struct {
	Enabled bool `json:"enabled"`

	// ServerURL is the telemetry endpoint's base host[:port].
	ServerURL string `json:"server_url"`

	DeviceID string `json:"device_id"`
	APIKey   string `json:"api_key"`

	HeartbeatInterval    time.Duration `json:"heartbeat_interval"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`
	EnableTLS            bool          `json:"enable_tls"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:              false,
		ServerURL:            "localhost:3000",
		HeartbeatInterval:    30 * time.Second,
		MaxReconnectAttempts: 5,
		EnableTLS:            true,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServerURL == "" {
		return ErrInvalidConfig("server_url is required")
	}
	if c.DeviceID == "" {
		return ErrInvalidConfig("device_id is required")
	}
	if c.APIKey == "" {
		return ErrInvalidConfig("api_key is required")
	}
	return nil
}

// TunnelURL returns the WebSocket endpoint URL for the bridge.
func (c *Config) TunnelURL() string {
	scheme := "ws"
	if c.EnableTLS {
		scheme = "wss"
	}
	return scheme + "://" + c.ServerURL + "/tunnel"
}
