package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nciadapter/nciadapter/internal/logger"
	"github.com/nciadapter/nciadapter/internal/storage"
)

// Config holds all configuration for the adapter daemon, adapted from the
// teacher's flow-engine Config into the NCI adapter's own sections
// (transport, timing, storage, telemetry, api) while keeping the
// server/logger sections in the teacher's shape.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Timing    TimingConfig    `mapstructure:"timing"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	API       APIConfig       `mapstructure:"api"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig contains HTTP management API server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// TransportConfig describes the UART link to the NFC controller chip
// (spec §3), mirroring internal/nci.SerialTransportConfig.
type TransportConfig struct {
	Port       string        `mapstructure:"port"`
	BaudRate   int           `mapstructure:"baud_rate"`
	ResetPin   string        `mapstructure:"reset_pin"`
	ResetPulse time.Duration `mapstructure:"reset_pulse"`
}

// TimingConfig holds the timing settings, each defaulting to the value the
// state machine hardcodes. The adapter does not read this section: it
// always runs on its own package constants, so overriding a value here
// does not change its timing.
type TimingConfig struct {
	PresenceCheckPeriod   time.Duration `mapstructure:"presence_check_period"`
	CEReactivationTimeout time.Duration `mapstructure:"ce_reactivation_timeout"`
	ISODepTransmitTimeout time.Duration `mapstructure:"isodep_transmit_timeout"`
}

// StorageConfig selects and configures the persisted ParamStore backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// TelemetryConfig mirrors internal/telemetry.Config for the cloud bridge.
type TelemetryConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	ServerURL            string        `mapstructure:"server_url"`
	DeviceID             string        `mapstructure:"device_id"`
	APIKey               string        `mapstructure:"api_key"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	EnableTLS            bool          `mapstructure:"enable_tls"`
}

// APIConfig holds the management API's auth settings.
type APIConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
}

// LoggerConfig contains logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ToStorageConfig adapts the Storage section into storage.Config.
func (c *Config) ToStorageConfig() storage.Config {
	return storage.Config{
		Backend: storage.BackendType(c.Storage.Backend),
		Path:    c.Storage.Path,
	}
}

var activeViper *viper.Viper

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults
	}

	v.SetEnvPrefix("NCIADAPTER")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	activeViper = v

	return &cfg, nil
}

// WatchLogLevel arms viper's fsnotify-backed config watch and hot-reloads
// only the logger level when the config file changes on disk; every other
// setting requires a restart to take effect.
func WatchLogLevel() {
	if activeViper == nil {
		return
	}
	activeViper.OnConfigChange(func(e fsnotify.Event) {
		newLevel := activeViper.GetString("logger.level")
		if newLevel == "" {
			return
		}
		if err := logger.SetLevel(newLevel); err != nil {
			logger.Error("failed to hot-reload log level", zap.Error(err))
		}
	})
	activeViper.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Transport defaults (spec §3)
	v.SetDefault("transport.port", "/dev/ttyACM0")
	v.SetDefault("transport.baud_rate", 115200)
	v.SetDefault("transport.reset_pin", "")
	v.SetDefault("transport.reset_pulse", 20*time.Millisecond)

	// Timing defaults (spec's literal constants)
	v.SetDefault("timing.presence_check_period", 250*time.Millisecond)
	v.SetDefault("timing.ce_reactivation_timeout", 1500*time.Millisecond)
	v.SetDefault("timing.isodep_transmit_timeout", 2500*time.Millisecond)

	// Storage defaults
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "./data/nciadapter.db")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.server_url", "localhost:3000")
	v.SetDefault("telemetry.heartbeat_interval", 30*time.Second)
	v.SetDefault("telemetry.max_reconnect_attempts", 5)
	v.SetDefault("telemetry.enable_tls", true)

	// API defaults
	v.SetDefault("api.jwt_issuer", "nciadapter")
	v.SetDefault("api.jwt_expiration", 24*time.Hour)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".nciadapter")
}
