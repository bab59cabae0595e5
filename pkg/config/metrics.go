package config

import (
	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FilesystemMetrics is the Service metrics sink (nil if disabled,
	// which makes the Service use its no-op implementation)
	FilesystemMetrics filesystem.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics for the filesystem service
//
// The REST client metrics are created by CreateClientFactory, so call
// InitializeMetrics first.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:            server,
		FilesystemMetrics: metrics.NewFilesystemMetrics(),
	}
}
