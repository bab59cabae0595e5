package config

import (
	"strings"
	"time"

	"github.com/marmos91/dfsgate/pkg/metrics"
	"github.com/marmos91/dfsgate/pkg/store/dfs"
	"github.com/marmos91/dfsgate/pkg/stream"
)

const (
	// DefaultBlockSize is the block size reported in file status.
	DefaultBlockSize int64 = 512 * 1024 * 1024

	// DefaultReadAheadQueueDepth is the number of chunks prefetched per stream.
	DefaultReadAheadQueueDepth = 2

	// DefaultAtomicRenameDirs lists the directories expecting atomic renames.
	DefaultAtomicRenameDirs = "/hbase"

	// DefaultTransportTimeout bounds one HTTP exchange.
	DefaultTransportTimeout = 90 * time.Second
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (empty strings, 0 integers, nil pointers) are replaced with
// defaults. Explicitly set values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyAccountDefaults(&cfg.Account)
	applyFileSystemDefaults(&cfg.FileSystem)
	applyStoreDefaults(&cfg.Store)
	applyTransportDefaults(&cfg.Transport)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	} else {
		cfg.Level = strings.ToUpper(cfg.Level)
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyAccountDefaults(cfg *AccountConfig) {
	if cfg.EndpointSuffix == "" {
		cfg.EndpointSuffix = dfs.DefaultEndpointSuffix
	}
	if cfg.UseHTTPS == nil {
		cfg.UseHTTPS = boolPtr(true)
	}
}

func applyFileSystemDefaults(cfg *FileSystemConfig) {
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = stream.DefaultBufferSize
	}
	if cfg.WriteBufferSize == 0 {
		cfg.WriteBufferSize = stream.DefaultBufferSize
	}
	if cfg.ReadAheadQueueDepth == 0 {
		cfg.ReadAheadQueueDepth = DefaultReadAheadQueueDepth
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.FlushEnabled == nil {
		cfg.FlushEnabled = boolPtr(true)
	}
	if cfg.AtomicRenameDirs == "" {
		cfg.AtomicRenameDirs = DefaultAtomicRenameDirs
	}
	if cfg.ReadConcurrency == 0 {
		cfg.ReadConcurrency = stream.DefaultConcurrency
	}
	if cfg.WriteConcurrency == 0 {
		cfg.WriteConcurrency = stream.DefaultConcurrency
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "dfs"
	}
	if cfg.DFS == nil {
		cfg.DFS = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTransportTimeout
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = metrics.DefaultPort
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Account: AccountConfig{
			Name:       "devaccount",
			FileSystem: "data",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

func boolPtr(b bool) *bool {
	return &b
}
