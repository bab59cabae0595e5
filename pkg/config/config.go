package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dfsgate configuration.
//
// This structure captures all configurable aspects of dfsgate including:
//   - Logging configuration
//   - Storage account credentials and the target filesystem
//   - Filesystem service tuning (buffers, read-ahead, flush policy)
//   - Store selection and configuration (store-specific)
//   - Outgoing request throttling
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DFSGATE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type and factory
// function. The Store section contains type-specific maps (store.dfs,
// store.memory, store.badger) and only the one matching the selected type
// is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Account identifies the storage account and filesystem
	Account AccountConfig `mapstructure:"account" yaml:"account"`

	// FileSystem tunes the filesystem service and its streams
	FileSystem FileSystemConfig `mapstructure:"filesystem" yaml:"filesystem"`

	// Store specifies the store type and type-specific configuration
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Transport controls outgoing HTTP requests
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// AccountConfig identifies the storage account.
type AccountConfig struct {
	// Name is the raw account name or its full host name
	Name string `mapstructure:"name" yaml:"name" validate:"required"`

	// Key is the base64 encoded shared key. Only the dfs store needs it.
	Key string `mapstructure:"key" yaml:"key"`

	// FileSystem is the filesystem (container) operated on
	FileSystem string `mapstructure:"filesystem" yaml:"filesystem" validate:"required"`

	// EndpointSuffix is appended to the account name to form the host
	EndpointSuffix string `mapstructure:"endpoint_suffix" yaml:"endpoint_suffix"`

	// UseHTTPS selects https over http
	UseHTTPS *bool `mapstructure:"use_https" yaml:"use_https"`
}

// FileSystemConfig tunes the filesystem service.
type FileSystemConfig struct {
	// ReadBufferSize is the chunk size of input streams in bytes
	ReadBufferSize int `mapstructure:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=0"`

	// WriteBufferSize is the append size of output streams in bytes
	WriteBufferSize int `mapstructure:"write_buffer_size" yaml:"write_buffer_size" validate:"gte=0"`

	// ReadAheadQueueDepth is the number of chunks prefetched ahead of the reader.
	// Zero keeps the default; negative disables read-ahead.
	ReadAheadQueueDepth int `mapstructure:"read_ahead_queue_depth" yaml:"read_ahead_queue_depth"`

	// BlockSize is reported in file status
	BlockSize int64 `mapstructure:"block_size" yaml:"block_size" validate:"gte=0"`

	// FlushEnabled makes Flush commit appended data
	FlushEnabled *bool `mapstructure:"flush_enabled" yaml:"flush_enabled"`

	// AtomicRenameDirs is a comma separated list of directories whose
	// renames callers expect to be atomic
	AtomicRenameDirs string `mapstructure:"atomic_rename_dirs" yaml:"atomic_rename_dirs"`

	// ReadConcurrency bounds concurrent prefetches per filesystem
	ReadConcurrency int `mapstructure:"read_concurrency" yaml:"read_concurrency" validate:"gte=0"`

	// WriteConcurrency bounds concurrent appends per filesystem
	WriteConcurrency int `mapstructure:"write_concurrency" yaml:"write_concurrency" validate:"gte=0"`
}

// StoreConfig specifies the store type and configuration.
type StoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: dfs, memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=dfs memory badger"`

	// DFS contains configuration for the HTTP client
	// Only used when Type = "dfs"
	DFS map[string]any `mapstructure:"dfs" yaml:"dfs,omitempty"`

	// Memory contains configuration for the in-memory emulator
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger contains configuration for the badger-backed emulator
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// TransportConfig controls outgoing HTTP requests.
type TransportConfig struct {
	// RequestsPerSecond throttles requests. Zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`

	// Burst is the number of requests allowed at once
	Burst int `mapstructure:"burst" yaml:"burst" validate:"gte=0"`

	// Timeout bounds each HTTP exchange
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the metrics server
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment variables, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DFSGATE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
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

// envKeys are bound explicitly so environment variables apply even when
// the config file does not mention the key.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"account.name",
	"account.key",
	"account.filesystem",
	"account.endpoint_suffix",
	"store.type",
	"metrics.enabled",
	"metrics.port",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DFSGATE_ prefix and underscores
	// Example: DFSGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DFSGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dfsgate/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Missing default file: use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dfsgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dfsgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
