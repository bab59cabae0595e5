// Package metrics provides Prometheus metrics collection for dfsgate components.
//
// All metrics are optional - if not initialized, constructors return nil and
// components fall back to their no-op implementations. This allows dfsgate to
// run with or without metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	restMetrics := metrics.NewRESTMetrics()
//	fsMetrics := metrics.NewFilesystemMetrics()
//
//	// Or use nil for no-op behavior
//	client, err := dfs.New(dfs.Config{Metrics: nil, ...})
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry holds every dfsgate metric once InitRegistry has run.
	registry     atomic.Pointer[prometheus.Registry]
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry, preloaded with the Go
// runtime and process collectors. Later calls are no-ops.
//
// Until it is called GetRegistry returns nil and the metrics constructors
// return nil.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry.Store(reg)
	})
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry.Load()
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry.Load() != nil
}
