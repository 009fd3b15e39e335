// Package config loads and validates the engine configuration from a
// YAML file, with sane defaults when no file exists.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	// Profile selects the system profile to operate on.
	Profile ProfileConfig `yaml:"profile"`

	// Native configures native machinery discovery.
	Native NativeConfig `yaml:"native"`

	// Fallback configures the command fallback path.
	Fallback FallbackConfig `yaml:"fallback"`

	// Journal configures operation journaling.
	Journal JournalConfig `yaml:"journal"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `yaml:"tracing"`
}

// ProfileConfig selects the profile directory and name.
type ProfileConfig struct {
	// Dir is the profiles directory.
	Dir string `yaml:"dir" validate:"required"`

	// Name is the profile name within Dir.
	Name string `yaml:"name" validate:"required"`
}

// NativeConfig configures discovery of the native machinery.
type NativeConfig struct {
	// Disabled forces the fallback path even when the native machinery
	// is present.
	Disabled bool `yaml:"disabled"`
}

// FallbackConfig configures the command fallback path.
type FallbackConfig struct {
	// Timeout bounds a single command invocation.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// JournalConfig configures operation journaling.
type JournalConfig struct {
	// Disabled turns journaling off.
	Disabled bool `yaml:"disabled"`

	// Path is the journal database file. Empty means the default
	// per-user data location.
	Path string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`

	// Format is console or json.
	Format string `yaml:"format" validate:"oneof=console json"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the endpoint's listen address.
	ListenAddress string `yaml:"listen_address" validate:"required_if=Enabled true"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on.
	Enabled bool `yaml:"enabled"`

	// Exporter is otlp, stdout, or none.
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`

	// Endpoint is the OTLP endpoint.
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Profile: ProfileConfig{
			Dir:  "/nix/var/nix/profiles",
			Name: "system",
		},
		Fallback: FallbackConfig{
			Timeout: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "none",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("luminix/config.yaml")
}

// Load reads the configuration from path. An empty path means the
// default location; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
