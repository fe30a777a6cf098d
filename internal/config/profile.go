package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Profile represents a deployment profile sizing the adapter for the host
// it runs on, adapted from the teacher's Pi-board profiles into the
// resource classes a single-board NCI gateway actually needs.
type Profile string

const (
	// ProfileMinimal - Pi Zero, BeagleBone (512MB RAM): one reader, no
	// optional sinks.
	ProfileMinimal Profile = "minimal"

	// ProfileStandard - Pi 3/4, Orange Pi (1GB RAM): cloud telemetry and
	// the management API enabled.
	ProfileStandard Profile = "standard"

	// ProfileFull - Pi 4/5, Jetson Nano (2GB+ RAM): every optional sink,
	// including the InfluxDB metrics export.
	ProfileFull Profile = "full"
)

// ProfileConfig holds profile-specific configuration.
type ProfileConfig struct {
	Name        Profile `mapstructure:"name"`
	Description string  `mapstructure:"description"`

	// Resource limits
	MaxMemory     int64 `mapstructure:"max_memory"`     // Max memory in MB
	MaxGoroutines int   `mapstructure:"max_goroutines"` // Max concurrent goroutines
	MaxReaders    int   `mapstructure:"max_readers"`    // Max concurrent reader connections

	// Module configuration
	Modules ModulesConfig `mapstructure:"modules"`

	// Feature flags
	Features FeaturesConfig `mapstructure:"features"`
}

// ModulesConfig defines which optional sinks/backends are enabled for a
// profile; core (the NCI state machine itself) is always enabled.
type ModulesConfig struct {
	Core          bool `mapstructure:"core"`           // Always enabled
	Telemetry     bool `mapstructure:"telemetry"`      // Cloud bridge/MQTT publisher
	InfluxExport  bool `mapstructure:"influx_export"`  // Periodic InfluxDB metrics export
	WebSocketHub  bool `mapstructure:"websocket_hub"`  // Live status/log push to UI clients
	RemoteArchive bool `mapstructure:"remote_archive"` // S3 activation-log archival
}

// FeaturesConfig defines feature flags.
type FeaturesConfig struct {
	ManagementAPI   bool `mapstructure:"management_api"`   // Enable the REST/WebSocket management API
	APIAuth         bool `mapstructure:"api_auth"`         // Enable JWT/API-key authentication
	Metrics         bool `mapstructure:"metrics"`          // Enable Prometheus /metrics
	DebugMode       bool `mapstructure:"debug_mode"`       // Verbose logging
	LogLevelReload  bool `mapstructure:"log_level_reload"` // fsnotify-driven log-level hot reload
	AutoDisable     bool `mapstructure:"auto_disable"`     // Auto-disable optional modules on low memory
	ResourceMonitor bool `mapstructure:"resource_monitor"` // Enable resource monitoring
}

// GetDefaultProfiles returns the default profile configurations.
func GetDefaultProfiles() map[Profile]*ProfileConfig {
	return map[Profile]*ProfileConfig{
		ProfileMinimal: {
			Name:          ProfileMinimal,
			Description:   "Minimal profile for Pi Zero, BeagleBone (512MB RAM)",
			MaxMemory:     50, // 50MB
			MaxGoroutines: 50, // Limited goroutines
			MaxReaders:    1,  // Single reader
			Modules: ModulesConfig{
				Core:          true,
				Telemetry:     false,
				InfluxExport:  false,
				WebSocketHub:  false,
				RemoteArchive: false,
			},
			Features: FeaturesConfig{
				ManagementAPI:   false,
				APIAuth:         false,
				Metrics:         false,
				DebugMode:       false,
				LogLevelReload:  false,
				AutoDisable:     true,
				ResourceMonitor: true,
			},
		},
		ProfileStandard: {
			Name:          ProfileStandard,
			Description:   "Standard profile for Pi 3/4, Orange Pi (1GB RAM)",
			MaxMemory:     200, // 200MB
			MaxGoroutines: 200, // More goroutines
			MaxReaders:    4,   // Small multi-reader gateway
			Modules: ModulesConfig{
				Core:          true,
				Telemetry:     true,
				InfluxExport:  false,
				WebSocketHub:  true,
				RemoteArchive: false,
			},
			Features: FeaturesConfig{
				ManagementAPI:   true,
				APIAuth:         true,
				Metrics:         true,
				DebugMode:       false,
				LogLevelReload:  true,
				AutoDisable:     true,
				ResourceMonitor: true,
			},
		},
		ProfileFull: {
			Name:          ProfileFull,
			Description:   "Full profile for Pi 4/5, Jetson Nano (2GB+ RAM)",
			MaxMemory:     400,  // 400MB
			MaxGoroutines: 1000, // Many goroutines
			MaxReaders:    32,   // Large multi-reader gateway
			Modules: ModulesConfig{
				Core:          true,
				Telemetry:     true,
				InfluxExport:  true,
				WebSocketHub:  true,
				RemoteArchive: true,
			},
			Features: FeaturesConfig{
				ManagementAPI:   true,
				APIAuth:         true,
				Metrics:         true,
				DebugMode:       true,
				LogLevelReload:  true,
				AutoDisable:     false,
				ResourceMonitor: true,
			},
		},
	}
}

// LoadProfile loads a profile configuration, merging any custom
// profile-<name>.yaml over the built-in defaults.
func LoadProfile(profileName string) (*ProfileConfig, error) {
	profile := Profile(profileName)

	defaults := GetDefaultProfiles()
	defaultConfig, exists := defaults[profile]
	if !exists {
		return nil, fmt.Errorf("unknown profile: %s", profileName)
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("profile-%s", profileName))
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(getConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read profile config: %w", err)
		}
		return defaultConfig, nil
	}

	var cfg ProfileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile config: %w", err)
	}

	mergeProfileConfig(&cfg, defaultConfig)

	return &cfg, nil
}

// DetectProfile automatically detects the best profile for the current
// system, based on available memory and whether it looks like an ARM
// single-board computer.
func DetectProfile() Profile {
	var memInfo runtime.MemStats
	runtime.ReadMemStats(&memInfo)

	totalMem := memInfo.Sys / 1024 / 1024 // Convert to MB

	isARM := runtime.GOARCH == "arm" || runtime.GOARCH == "arm64"

	if !isARM {
		return ProfileFull
	}

	if totalMem < 256 {
		return ProfileMinimal
	} else if totalMem < 1024 {
		return ProfileStandard
	}

	return ProfileFull
}

// DetectBoard attempts to detect the board type.
func DetectBoard() string {
	if _, err := os.Stat("/proc/device-tree/model"); err == nil {
		data, err := os.ReadFile("/proc/device-tree/model")
		if err == nil {
			model := string(data)
			if contains(model, "Raspberry Pi Zero") {
				return "Pi Zero"
			} else if contains(model, "Raspberry Pi 3") {
				return "Pi 3"
			} else if contains(model, "Raspberry Pi 4") {
				return "Pi 4"
			} else if contains(model, "Raspberry Pi 5") {
				return "Pi 5"
			} else if contains(model, "Raspberry Pi") {
				return "Raspberry Pi"
			}
		}
	}

	if _, err := os.Stat("/etc/dogtag"); err == nil {
		return "BeagleBone"
	}

	if _, err := os.Stat("/etc/orangepi-release"); err == nil {
		return "Orange Pi"
	}

	if _, err := os.Stat("/etc/nv_tegra_release"); err == nil {
		return "Jetson"
	}

	if runtime.GOOS == "linux" {
		if runtime.GOARCH == "arm64" {
			return "ARM64 Linux"
		} else if runtime.GOARCH == "arm" {
			return "ARM Linux"
		}
		return "Linux"
	}

	return "Unknown"
}

// GetProfileForBoard returns the recommended profile for a board type.
func GetProfileForBoard(board string) Profile {
	switch board {
	case "Pi Zero":
		return ProfileMinimal
	case "Pi 3", "Orange Pi", "BeagleBone":
		return ProfileStandard
	case "Pi 4", "Pi 5", "Jetson":
		return ProfileFull
	default:
		return ProfileStandard
	}
}

func mergeProfileConfig(cfg *ProfileConfig, defaults *ProfileConfig) {
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Description == "" {
		cfg.Description = defaults.Description
	}
	if cfg.MaxMemory == 0 {
		cfg.MaxMemory = defaults.MaxMemory
	}
	if cfg.MaxGoroutines == 0 {
		cfg.MaxGoroutines = defaults.MaxGoroutines
	}
	if cfg.MaxReaders == 0 {
		cfg.MaxReaders = defaults.MaxReaders
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && findSubstring(s, substr)
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// SaveProfileConfig saves a profile configuration to file.
func SaveProfileConfig(profileName string, cfg *ProfileConfig) error {
	configPath := filepath.Join(getConfigDir(), fmt.Sprintf("profile-%s.yaml", profileName))

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("name", cfg.Name)
	v.Set("description", cfg.Description)
	v.Set("max_memory", cfg.MaxMemory)
	v.Set("max_goroutines", cfg.MaxGoroutines)
	v.Set("max_readers", cfg.MaxReaders)
	v.Set("modules", cfg.Modules)
	v.Set("features", cfg.Features)

	return v.WriteConfigAs(configPath)
}

// ValidateProfile validates a profile configuration.
func ValidateProfile(cfg *ProfileConfig) error {
	if cfg.MaxMemory < 10 {
		return fmt.Errorf("max_memory must be at least 10MB")
	}
	if cfg.MaxGoroutines < 10 {
		return fmt.Errorf("max_goroutines must be at least 10")
	}
	if cfg.MaxReaders < 1 {
		return fmt.Errorf("max_readers must be at least 1")
	}
	return nil
}
