// Package config loads and validates remotefile configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (REMOTEFILE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Transport and cache selection follows a type + type-specific-section
// pattern: the Type field picks the implementation and only the matching
// options map is decoded, by the factory, into that implementation's own
// configuration struct.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete remotefile configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Client contains connection tuning handed to the transport at
	// construction
	Client ClientConfig `mapstructure:"client"`

	// Transport specifies the transport type and type-specific options
	Transport TransportConfig `mapstructure:"transport"`

	// Cache specifies the local block cache type and type-specific options
	Cache CacheConfig `mapstructure:"cache"`

	// Metrics enables the Prometheus metrics registry
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ClientConfig carries connection tuning values. They are read once at
// construction and handed to the transport; transports that have no use
// for a knob ignore it.
type ClientConfig struct {
	// RequestTimeout bounds a single transport request
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=0"`

	// ConnectionWindow bounds connection establishment
	ConnectionWindow time.Duration `mapstructure:"connection_window" validate:"min=0"`

	// MaxRetries caps transport-level retries of transient failures
	MaxRetries int `mapstructure:"max_retries" validate:"min=0"`
}

// TransportConfig selects and configures the transport.
type TransportConfig struct {
	// Type specifies which transport implementation to use.
	// Valid values: memory, fs, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory fs s3"`

	// FS contains fs-specific options. Only used when Type = "fs".
	FS map[string]any `mapstructure:"fs"`

	// S3 contains s3-specific options. Only used when Type = "s3".
	S3 map[string]any `mapstructure:"s3"`
}

// CacheConfig selects and configures the local block cache.
type CacheConfig struct {
	// Type specifies which cache implementation to use.
	// Valid values: none, memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=none memory badger"`

	// Memory contains memory-cache options. Only used when Type = "memory".
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains badger-cache options. Only used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	// Enabled initializes the global metrics registry at startup
	Enabled bool `mapstructure:"enabled"`
}

// Load reads, defaults and validates the configuration. A missing config
// file is fine - defaults plus environment variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and the config file
// location. Environment variables use the REMOTEFILE_ prefix with
// underscores, e.g. REMOTEFILE_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("REMOTEFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// No config file is acceptable - defaults apply.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the default configuration directory:
// $XDG_CONFIG_HOME/remotefile, falling back to ~/.config/remotefile, or
// the current directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "remotefile")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "remotefile")
}
